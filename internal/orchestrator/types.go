package orchestrator

// #region imports
import (
	"errors"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/action"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/engagement"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/goal"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/imagesync"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
)

// #endregion

var ErrConversationEnded = errors.New("conversation has ended")

// #region pending-feedback

// PendingFeedback is the feedback waiting to be shown next to the user record it scores.
type PendingFeedback struct {
	UserTurnID string           `json:"user_turn_id"`
	Feedback   history.Feedback `json:"feedback"`
}

// #endregion

// #region conversation-state

// ConversationState is the aggregate a conversation carries between turns. It is
// handled as a value: ProcessTurn and the With* helpers return a new state.
type ConversationState struct {
	History           history.History   `json:"history"`
	Score             engagement.Score  `json:"score"`
	Goal              *goal.State       `json:"goal,omitempty"`
	LastDisplayedGoal string            `json:"last_displayed_goal,omitempty"`
	LastCompletedGoal string            `json:"last_completed_goal,omitempty"`
	CompletedGoals    []string          `json:"completed_goals,omitempty"`
	Action            *action.State     `json:"action,omitempty"`
	PendingFeedback   *PendingFeedback  `json:"pending_feedback,omitempty"`
	Scenario          scenario.Scenario `json:"scenario"`
	Ended             bool              `json:"ended"`
	EndReason         ending.Reason     `json:"end_reason,omitempty"`
}

// #endregion

// #region turn-input

// TurnInput carries the caller-side facts about the turn being processed.
type TurnInput struct {
	// UserTurnID is the record the turn's feedback scores; empty for turns without
	// user dialogue or gesture.
	UserTurnID  string
	FastForward bool
}

// #endregion

// #region turn-result

// TurnResult is the new state plus the transient signals the display layer needs.
type TurnResult struct {
	State               ConversationState
	AIRecordID          string
	Annotation          *history.GoalChange
	GoalChanged         bool
	Achievement         *goal.Achievement
	GoalPhase           goal.Phase
	ActionEvent         action.Event
	EngagementApplied   int
	ImageDispatched     bool
	UserActionSuggested bool
	End                 ending.EndResult
}

// #endregion

// #region config

// Config bundles scoring and ending parameters.
type Config struct {
	Engagement engagement.Config
	End        ending.EndConfig
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		Engagement: engagement.DefaultConfig(),
		End:        ending.DefaultEndConfig(),
	}
}

// #endregion

// #region interfaces

// ImageDispatcher hands image jobs to the detached worker. Dispatch must not block.
type ImageDispatcher interface {
	Dispatch(job imagesync.Job) bool
}

// #endregion
