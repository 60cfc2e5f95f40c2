package history

import "time"

// #region role

// Role tags who produced a record.
type Role string

const (
	RoleUser       Role = "user"
	RoleUserAction Role = "user_action"
	RoleAI         Role = "ai"
	RoleBackstory  Role = "backstory"
	RoleSystem     Role = "system"
)

// #endregion role

// #region segment

// SegmentKind classifies one piece of a structured AI response.
type SegmentKind string

const (
	SegmentDialogue  SegmentKind = "dialogue"
	SegmentThought   SegmentKind = "thought"
	SegmentNarration SegmentKind = "narration"
)

// Segment is one ordered piece of an AI response.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`
}

// #endregion segment

// #region feedback

// TraitTag records how much one persona trait contributed to the feedback.
type TraitTag struct {
	Trait        string `json:"trait"`
	Contribution string `json:"contribution"` // "positive" | "negative" | "neutral"
}

// Feedback is the turn service's assessment of the user's last move.
type Feedback struct {
	EngagementDelta     int        `json:"engagement_delta"`
	EffectivenessScore  int        `json:"effectiveness_score"`
	Traits              []TraitTag `json:"traits,omitempty"`
	Reasoning           string     `json:"reasoning,omitempty"`
	NextStep            string     `json:"next_step,omitempty"`
	AlternativePhrasing string     `json:"alternative_phrasing,omitempty"`
}

// #endregion feedback

// #region goal-change

// GoalChangeKind is the outcome of diffing the displayed goal against the emerging one.
type GoalChangeKind string

const (
	GoalEstablished GoalChangeKind = "established"
	GoalRemoved     GoalChangeKind = "removed"
	GoalChanged     GoalChangeKind = "changed"
)

// GoalChange annotates an AI record with the goal transition it caused.
type GoalChange struct {
	Kind GoalChangeKind `json:"kind"`
	From string         `json:"from,omitempty"`
	To   string         `json:"to,omitempty"`
}

// #endregion goal-change

// #region failure

// TriggerKind identifies which control-surface operation produced a turn.
type TriggerKind string

const (
	TriggerUserTurn       TriggerKind = "user_turn"
	TriggerSilentContinue TriggerKind = "silent_continue"
	TriggerFastForward    TriggerKind = "fast_forward"
)

// Failure marks a system record left behind by a failed turn service call.
// It keeps everything needed to resubmit the turn.
type Failure struct {
	Trigger  TriggerKind `json:"trigger"`
	Dialogue string      `json:"dialogue,omitempty"`
	Gesture  string      `json:"gesture,omitempty"`
	Error    string      `json:"error"`
}

// #endregion failure

// #region turn-record

// TurnRecord is one entry of the conversation. Records are immutable once appended,
// except that Image may be filled in once while ImagePending is set, and Feedback may
// be attached once to a user record.
type TurnRecord struct {
	ID           string      `json:"id"`
	Role         Role        `json:"role"`
	Text         string      `json:"text"`
	Segments     []Segment   `json:"segments,omitempty"`
	BodyLanguage string      `json:"body_language,omitempty"`
	Image        string      `json:"image,omitempty"`
	ImagePending bool        `json:"image_pending,omitempty"`
	Feedback     *Feedback   `json:"feedback,omitempty"`
	GoalChange   *GoalChange `json:"goal_change,omitempty"`
	Failure      *Failure    `json:"failure,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsFailureMarker reports whether the record is a retryable error marker.
func (r TurnRecord) IsFailureMarker() bool {
	return r.Role == RoleSystem && r.Failure != nil
}

// #endregion turn-record
