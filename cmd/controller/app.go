package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/codec"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/config"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/imagesync"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/logging"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/metrics"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/session"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/state"
)

// #region runtime

type turnClient interface {
	session.TurnService
	Close() error
}

// runtime holds everything one controller process owns.
type runtime struct {
	cfg     *config.Config
	store   *state.Store
	client  turnClient
	images  *imagesync.Coordinator
	session *session.Session
}

func setupLogging(cfg *config.Config) {
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
}

func newRuntime(cfg *config.Config, resume bool) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	sc := defaultScenario()
	if cfg.ScenarioFile != "" {
		loaded, err := scenario.Load(cfg.ScenarioFile)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}

	if cfg.StateDB != "" {
		store, err := state.NewStore(cfg.StateDB)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		rt.store = store
	}

	client, err := newTurnClient(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.client = client

	opts := session.Options{Store: rt.store, Timeout: cfg.TurnTimeout}
	if resume {
		if err := rt.resumeInto(&opts); err != nil {
			rt.Close()
			return nil, err
		}
	}

	// The coordinator patches the session, which does not exist yet when the
	// coordinator is built.
	var sess *session.Session
	var dispatcher orchestrator.ImageDispatcher
	if cfg.ImagesEnabled() {
		gen := codec.NewOpenAIImageClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ImageModel, cfg.ImageSize)
		patch := imagesync.PatcherFunc(func(recordID, image string) error {
			return sess.PatchImage(recordID, image)
		})
		rt.images = imagesync.NewCoordinator(gen, patch, cfg.Images(), nil)
		rt.images.OnResult = func(res imagesync.Result) {
			status := "generated"
			if res.Fallback {
				status = "fallback"
			}
			metrics.RecordImageJob(status)
		}
		dispatcher = rt.images
	}

	orch := orchestrator.NewOrchestrator(cfg.Orchestrator(), dispatcher)
	sess = session.New(sc, rt.client, orch, opts)
	rt.session = sess

	log.Info().
		Str("session_id", sess.ID()).
		Str("transport", cfg.TurnTransport).
		Bool("images", cfg.ImagesEnabled()).
		Bool("persistent", rt.store != nil).
		Msg("controller ready")
	return rt, nil
}

func newTurnClient(cfg *config.Config) (turnClient, error) {
	switch cfg.TurnTransport {
	case "http":
		return codec.NewHTTPTurnClient(cfg.TurnHTTPURL, cfg.TurnTimeout), nil
	default:
		client, err := codec.NewGRPCTurnClient(cfg.TurnGRPCAddr)
		if err != nil {
			return nil, fmt.Errorf("connect to turn service at %s: %w", cfg.TurnGRPCAddr, err)
		}
		return client, nil
	}
}

// resumeInto loads the active snapshot so the session continues where it stopped.
func (rt *runtime) resumeInto(opts *session.Options) error {
	if rt.store == nil {
		return fmt.Errorf("--resume requires STATE_DB")
	}
	cur, err := rt.store.GetCurrent()
	if err != nil {
		return fmt.Errorf("load active snapshot: %w", err)
	}
	var st orchestrator.ConversationState
	if err := json.Unmarshal([]byte(cur.StateJSON), &st); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", cur.VersionID, err)
	}
	opts.ID = cur.SessionID
	opts.Initial = &st
	log.Info().Str("version_id", cur.VersionID).Str("session_id", cur.SessionID).Msg("resuming conversation")
	return nil
}

// Close stops image workers before the store so pending patches still commit.
func (rt *runtime) Close() {
	if rt.images != nil {
		rt.images.Stop()
	}
	if rt.client != nil {
		if err := rt.client.Close(); err != nil {
			log.Warn().Err(err).Msg("close turn client")
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}
}

func defaultScenario() scenario.Scenario {
	return scenario.Prepare(scenario.Scenario{
		Persona: scenario.Persona{
			Name:        "Alex",
			Description: "A stranger waiting for their coffee order",
			Mood:        "neutral",
		},
		Environment: scenario.KnownEnvironment(scenario.EnvCafe),
	})
}

// #endregion runtime
