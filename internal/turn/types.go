package turn

import (
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/action"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
)

// Tokens sent as the user input for turns without dialogue.
const (
	SilentContinueToken = "[continue]"
	FastForwardToken    = "[fast-forward]"
)

// #region request

// Request is what the turn service receives for one turn.
type Request struct {
	History           []history.TurnRecord `json:"history"`
	UserInput         string               `json:"user_input"`
	CurrentEngagement int                  `json:"current_engagement"`
	Scenario          scenario.Scenario    `json:"scenario"`
	LastKnownPose     string               `json:"last_known_pose,omitempty"`
	ActiveAction      *action.State        `json:"active_action,omitempty"`
	FastForward       bool                 `json:"fast_forward"`
	ActionPaused      bool                 `json:"action_paused"`
}

// #endregion request

// #region response

// Response is the structured result of one turn.
type Response struct {
	Segments     []history.Segment `json:"segments"`
	BodyLanguage string            `json:"body_language,omitempty"`
	Feedback     *history.Feedback `json:"feedback,omitempty"`

	EmergingGoal string `json:"emerging_goal,omitempty"`
	GoalProgress int    `json:"goal_progress"`
	GoalAchieved bool   `json:"goal_achieved"`

	ActiveAction        *action.Report `json:"active_action,omitempty"`
	UserActionSuggested bool           `json:"user_action_suggested"`
	EndingConversation  bool           `json:"ending_conversation"`
	GenerateImage       bool           `json:"generate_image"`

	PersonaDelta     *scenario.PersonaDelta `json:"persona_delta,omitempty"`
	EnvironmentDelta string                 `json:"environment_delta,omitempty"`
	VisualDelta      *scenario.VisualDelta  `json:"visual_delta,omitempty"`
}

// DialogueText joins the dialogue segments of the response.
func (r Response) DialogueText() string {
	return history.DialogueText(r.Segments)
}

// #endregion response
