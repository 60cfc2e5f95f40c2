package action

import "strings"

// #region types

// State is the physical activity the persona and user are engaged in.
type State struct {
	Description string `json:"description"`
	Progress    int    `json:"progress"`
	Paused      bool   `json:"paused"`
}

// Report is the turn service's view of the active action for one turn.
type Report struct {
	Description string `json:"description"`
	Progress    int    `json:"progress"`
}

// Event describes what happened to the action this turn.
type Event string

const (
	EventNone       Event = "none"
	EventStarted    Event = "started"
	EventProgressed Event = "progressed"
	EventResumed    Event = "resumed"
	EventPaused     Event = "paused"
	EventCompleted  Event = "completed"
)

// Outcome is the action state after one turn.
type Outcome struct {
	Action *State
	Event  Event
	// Engaged is true when an action occupied the turn, running or paused, including
	// the turn on which it completes. Goal display is suppressed for engaged turns.
	Engaged bool
}

// #endregion types

// #region resolve

// Resolve advances the action state machine by one turn.
//
//	Absent  -> Running   the service reports an action
//	Running -> Running   same description, progress = max(old, new)
//	Running -> Paused    the service stops reporting it below 100 without fast-forward
//	any     -> Absent    progress reaches 100, or fast-forward completes a lapsed action
//
// A report with a different description replaces the action and resets progress.
func Resolve(current *State, report *Report, fastForward bool) Outcome {
	if report != nil && strings.TrimSpace(report.Description) != "" {
		return resolveReported(current, *report)
	}

	if current == nil {
		return Outcome{Event: EventNone}
	}

	if fastForward || current.Progress >= 100 {
		return Outcome{Event: EventCompleted, Engaged: true}
	}

	paused := *current
	paused.Paused = true
	ev := EventPaused
	if current.Paused {
		ev = EventNone
	}
	return Outcome{Action: &paused, Event: ev, Engaged: true}
}

func resolveReported(current *State, report Report) Outcome {
	desc := strings.TrimSpace(report.Description)
	progress := clampProgress(report.Progress)

	ev := EventStarted
	if current != nil && sameAction(current.Description, desc) {
		if current.Progress > progress {
			progress = current.Progress
		}
		switch {
		case current.Paused:
			ev = EventResumed
		case progress > current.Progress:
			ev = EventProgressed
		default:
			ev = EventNone
		}
	}

	if progress >= 100 {
		return Outcome{Event: EventCompleted, Engaged: true}
	}
	return Outcome{
		Action:  &State{Description: desc, Progress: progress},
		Event:   ev,
		Engaged: true,
	}
}

// #endregion resolve

// #region helpers

func sameAction(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

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
