package goal

import (
	"strings"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
)

// #region types

// State is the goal currently shown to the user.
type State struct {
	Text     string `json:"text"`
	Progress int    `json:"progress"`
	Pinned   bool   `json:"pinned"`
}

// Phase is the goal lifecycle position.
type Phase string

const (
	PhaseNone     Phase = "none"
	PhaseEmerging Phase = "emerging"
	PhasePinned   Phase = "pinned"
	PhaseAchieved Phase = "achieved"
)

// PhaseOf returns the lifecycle phase of a displayed goal (nil means no goal).
func PhaseOf(s *State) Phase {
	switch {
	case s == nil:
		return PhaseNone
	case s.Pinned:
		return PhasePinned
	default:
		return PhaseEmerging
	}
}

// Achievement is raised once per goal text when it is reached.
// Toast is false for the goal preconfigured at session start, whose achievement ends
// the conversation instead of showing a notification.
type Achievement struct {
	Text          string `json:"text"`
	Preconfigured bool   `json:"preconfigured"`
	Toast         bool   `json:"toast"`
	WasPinned     bool   `json:"was_pinned"`
}

// Input is everything Resolve needs for one turn.
type Input struct {
	PinnedGoal    string // the scenario's permanent goal, "" when unpinned
	InitialGoal   string // goal preconfigured at session start
	Emerging      string // goal text the turn service reports
	Progress      int
	Achieved      bool
	LastCompleted string
	Completed     []string // lower-cased texts of every goal achieved so far
	Annotation    *history.GoalChange
}

// Output is the goal state after one turn.
type Output struct {
	Goal          *State
	PinnedGoal    string
	LastCompleted string
	Completed     []string
	Achievement   *Achievement
	Changed       bool // transient "goal changed" indicator
	Phase         Phase
}

// #endregion types

// #region diff

// Diff compares the displayed goal text with the emerging one. Pinned goals never
// produce annotations; nil means no change.
func Diff(displayed, emerging string, pinned bool) *history.GoalChange {
	if pinned {
		return nil
	}
	from := strings.TrimSpace(displayed)
	to := strings.TrimSpace(emerging)
	switch {
	case from == "" && to != "":
		return &history.GoalChange{Kind: history.GoalEstablished, To: to}
	case from != "" && to == "":
		return &history.GoalChange{Kind: history.GoalRemoved, From: from}
	case from != "" && to != "" && !strings.EqualFold(from, to):
		return &history.GoalChange{Kind: history.GoalChanged, From: from, To: to}
	default:
		return nil
	}
}

// #endregion diff

// #region resolve

// Resolve evaluates the goal for a turn with no active action. A pinned goal's text
// wins over the emerging one. On achievement the goal is cleared, unpinned if it was
// pinned, and an Achievement is raised unless this text was already completed.
func Resolve(in Input) Output {
	out := Output{
		PinnedGoal:    in.PinnedGoal,
		LastCompleted: in.LastCompleted,
		Completed:     in.Completed,
	}

	pinned := strings.TrimSpace(in.PinnedGoal) != ""
	text := strings.TrimSpace(in.Emerging)
	if pinned {
		text = strings.TrimSpace(in.PinnedGoal)
	}

	if text == "" {
		out.Phase = PhaseNone
		return out
	}

	progress := clampProgress(in.Progress)
	if in.Achieved || progress >= 100 {
		if !strings.EqualFold(text, in.LastCompleted) && !WasCompleted(in.Completed, text) {
			preconfigured := in.InitialGoal != "" && strings.EqualFold(text, in.InitialGoal)
			out.Achievement = &Achievement{
				Text:          text,
				Preconfigured: preconfigured,
				Toast:         !preconfigured,
				WasPinned:     pinned,
			}
			out.LastCompleted = text
			out.Completed = append(append([]string(nil), in.Completed...), strings.ToLower(text))
		}
		if pinned {
			out.PinnedGoal = ""
		}
		out.Phase = PhaseAchieved
		return out
	}

	out.Goal = &State{Text: text, Progress: progress, Pinned: pinned}
	out.Changed = in.Annotation != nil
	out.Phase = PhaseOf(out.Goal)
	return out
}

// WasCompleted reports whether text was already achieved in this conversation.
func WasCompleted(completed []string, text string) bool {
	key := strings.ToLower(strings.TrimSpace(text))
	for _, c := range completed {
		if c == key {
			return true
		}
	}
	return false
}

// #endregion resolve

// #region pin

// Pin fixes text as the permanent goal and returns the displayed goal.
func Pin(current *State, text string) *State {
	text = strings.TrimSpace(text)
	progress := 0
	if current != nil && strings.EqualFold(current.Text, text) {
		progress = current.Progress
	}
	return &State{Text: text, Progress: progress, Pinned: true}
}

// Unpin releases the permanent goal. The displayed goal stays until the next turn
// reports what is emerging.
func Unpin(current *State) *State {
	if current == nil {
		return nil
	}
	s := *current
	s.Pinned = false
	return &s
}

// #endregion pin

// #region helpers

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// #endregion helpers
