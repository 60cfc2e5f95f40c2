package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
)

// #region controller

// Controller is the control surface the HTTP layer drives. *session.Session implements it.
type Controller interface {
	ID() string
	State() orchestrator.ConversationState
	Pending() bool
	SubmitUserTurn(ctx context.Context, dialogue, gesture string) (orchestrator.TurnResult, error)
	SubmitSilentContinue(ctx context.Context) (orchestrator.TurnResult, error)
	SubmitFastForward(ctx context.Context) (orchestrator.TurnResult, error)
	RetryLastFailedTurn(ctx context.Context) (orchestrator.TurnResult, error)
	PinGoal(text string) (orchestrator.ConversationState, error)
	UnpinGoal() (orchestrator.ConversationState, error)
	EndConversation(userInitiated bool) orchestrator.ConversationState
}

// #endregion controller

// #region server

const shutdownTimeout = 10 * time.Second

// Server wraps the gin engine with graceful shutdown.
type Server struct {
	addr   string
	engine *gin.Engine
}

// New builds the engine and registers every route.
func New(addr string, ctrl Controller) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger())

	h := &handlers{ctrl: ctrl}
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "session_id": ctrl.ID()})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.GET("/state", h.getState)
	v1.POST("/turns", h.submitTurn)
	v1.POST("/turns/continue", h.silentContinue)
	v1.POST("/turns/fast-forward", h.fastForward)
	v1.POST("/turns/retry", h.retry)
	v1.PUT("/goal/pin", h.pinGoal)
	v1.DELETE("/goal/pin", h.unpinGoal)
	v1.POST("/end", h.end)

	return &Server{addr: addr, engine: engine}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("[HTTP] listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("[HTTP] context cancelled, shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// #endregion server

// #region middleware

// RequestLogger logs each request with the global zerolog logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 400 {
			event = log.Warn()
		}
		if status >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("[HTTP] request completed")
	}
}

// #endregion middleware
