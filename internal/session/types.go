package session

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/state"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// #endregion

// #region errors

var (
	ErrTurnInFlight      = errors.New("a turn is already in flight")
	ErrConversationEnded = orchestrator.ErrConversationEnded
	ErrNothingToRetry    = errors.New("no failed turn to retry")
	ErrEmptyTurn         = errors.New("turn has neither dialogue nor gesture")
	ErrNoGoalText        = errors.New("no goal text to pin")
)

// ServiceError is a turn service failure. The failed submission is recorded as a
// failure marker in history and can be retried with RetryLastFailedTurn.
type ServiceError struct {
	Trigger  history.TriggerKind
	MarkerID string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("turn service failed (%s): %v", e.Trigger, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether RetryLastFailedTurn can resubmit the turn.
func (e *ServiceError) Retryable() bool { return e.MarkerID != "" }

// #endregion

// #region interfaces

// TurnService generates one turn. Implementations must be safe to call again with
// the same request after a failure.
type TurnService interface {
	Generate(ctx context.Context, req turn.Request) (turn.Response, error)
}

// #endregion

// #region options

// Options configures a Session. The zero value keeps state in memory only.
type Options struct {
	// ID names the session in snapshots and provenance; generated when empty.
	ID string
	// Store receives a snapshot and a provenance row per operation. May be nil.
	Store *state.Store
	// Timeout bounds each turn service call; zero means no timeout.
	Timeout time.Duration
	// Backstory lines become the first history records of a new conversation,
	// overriding the scenario's own.
	Backstory []string
	// Initial resumes a previously saved conversation instead of starting fresh.
	Initial *orchestrator.ConversationState
}

// #endregion
