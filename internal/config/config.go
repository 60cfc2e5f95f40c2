package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/engagement"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/imagesync"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
)

// ErrMissingCredentials is returned when the selected image backend needs an API key
// and none is configured.
var ErrMissingCredentials = errors.New("missing image generation credentials")

// #region config-struct

// Config holds the environment driven configuration for the controller.
type Config struct {
	// Turn service
	TurnTransport string        `env:"TURN_TRANSPORT" envDefault:"grpc"` // grpc | http
	TurnGRPCAddr  string        `env:"TURN_GRPC_ADDR" envDefault:"localhost:50051"`
	TurnHTTPURL   string        `env:"TURN_HTTP_URL" envDefault:"http://localhost:8088"`
	TurnTimeout   time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`

	// Image generation
	ImageBackend   string        `env:"IMAGE_BACKEND" envDefault:"none"` // none | openai
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	ImageModel     string        `env:"IMAGE_MODEL" envDefault:"dall-e-3"`
	ImageSize      string        `env:"IMAGE_SIZE" envDefault:"1024x1024"`
	ImageWorkers   int           `env:"IMAGE_WORKERS" envDefault:"1"`
	ImageQueueSize int           `env:"IMAGE_QUEUE_SIZE" envDefault:"16"`
	ImageTimeout   time.Duration `env:"IMAGE_TIMEOUT" envDefault:"120s"`

	// Scoring
	EngagementInitial       int `env:"ENGAGEMENT_INITIAL" envDefault:"50"`
	EngagementDecay         int `env:"ENGAGEMENT_DECAY" envDefault:"2"`
	ZeroEngagementThreshold int `env:"ZERO_ENGAGEMENT_THRESHOLD" envDefault:"3"`

	// Persistence and scenario
	StateDB      string `env:"STATE_DB"` // empty keeps state in memory only
	ScenarioFile string `env:"SCENARIO_FILE"`

	// Serving
	HTTPPort  int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // console | json
}

// #endregion config-struct

// #region load

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	cfg.TurnTransport = strings.ToLower(strings.TrimSpace(cfg.TurnTransport))
	cfg.ImageBackend = strings.ToLower(strings.TrimSpace(cfg.ImageBackend))
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	if cfg.ImageWorkers <= 0 {
		cfg.ImageWorkers = 1
	}
	if cfg.ImageQueueSize <= 0 {
		cfg.ImageQueueSize = 16
	}
	return cfg, nil
}

// #endregion load

// #region validate

// Validate checks the combinations env.Parse cannot express.
func (c *Config) Validate() error {
	switch c.TurnTransport {
	case "grpc", "http":
	default:
		return fmt.Errorf("unknown TURN_TRANSPORT %q", c.TurnTransport)
	}
	switch c.ImageBackend {
	case "none", "":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("IMAGE_BACKEND=openai requires OPENAI_API_KEY: %w", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("unknown IMAGE_BACKEND %q", c.ImageBackend)
	}
	return nil
}

// #endregion validate

// #region accessors

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// ImagesEnabled reports whether a generation backend is configured.
func (c *Config) ImagesEnabled() bool {
	return c.ImageBackend == "openai"
}

// Orchestrator returns the scoring and ending parameters.
func (c *Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		Engagement: engagement.Config{Initial: c.EngagementInitial, DecayPerTurn: c.EngagementDecay},
		End:        ending.EndConfig{ZeroStreakThreshold: c.ZeroEngagementThreshold},
	}
}

// Images returns the worker pool parameters.
func (c *Config) Images() imagesync.Config {
	return imagesync.Config{Workers: c.ImageWorkers, QueueSize: c.ImageQueueSize, Timeout: c.ImageTimeout}
}

// #endregion accessors
