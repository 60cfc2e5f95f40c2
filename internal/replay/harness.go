package replay

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/action"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// #region types

// Kind is the operation an interaction replays.
type Kind string

const (
	KindTurn  Kind = "turn"
	KindPin   Kind = "pin"
	KindUnpin Kind = "unpin"
	KindEnd   Kind = "end"
)

// Interaction represents a single recorded operation for replay.
type Interaction struct {
	Kind        Kind
	TurnID      string
	UserText    string
	Gesture     string
	FastForward bool
	Response    turn.Response
	// PinText is the goal text for KindPin; EndReason is the reason for KindEnd.
	PinText   string
	EndReason ending.Reason
}

// ReplayResult captures the outcome of replaying one interaction.
type ReplayResult struct {
	TurnID string
	Kind   Kind
	Action string // "processed" | "skipped" | "error"
	Reason string

	Engagement  int
	Applied     int
	ActionEvent action.Event
	GoalText    string
	Achieved    bool
	Ended       bool
	EndReason   ending.Reason
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns int
	Processed  int
	Skipped    int
	Errors     int
	Ended      bool
	EndReason  ending.Reason
	FinalState orchestrator.ConversationState
}

// #endregion types

// #region replay

// Replay runs interactions through a fresh orchestrator without image generation.
// Operates entirely in-memory; the final state is returned with the per-turn results.
func Replay(start orchestrator.ConversationState, interactions []Interaction, config orchestrator.Config) ([]ReplayResult, orchestrator.ConversationState) {
	orch := orchestrator.NewOrchestrator(config, nil)
	current := start
	results := make([]ReplayResult, 0, len(interactions))

	for _, inter := range interactions {
		kind := inter.Kind
		if kind == "" {
			kind = KindTurn
		}
		res := ReplayResult{TurnID: inter.TurnID, Kind: kind}

		if current.Ended {
			res.Action = "skipped"
			res.Reason = orchestrator.ErrConversationEnded.Error()
			results = append(results, fill(res, current))
			continue
		}

		next, err := apply(orch, current, inter, kind, &res)
		if err != nil {
			res.Action = "error"
			res.Reason = err.Error()
			results = append(results, fill(res, current))
			continue
		}
		current = next
		res.Action = "processed"
		results = append(results, fill(res, current))
	}
	return results, current
}

func apply(orch *orchestrator.Orchestrator, st orchestrator.ConversationState, inter Interaction, kind Kind, res *ReplayResult) (orchestrator.ConversationState, error) {
	switch kind {
	case KindPin:
		return st.WithPinnedGoal(inter.PinText)
	case KindUnpin:
		return st.WithoutPinnedGoal()
	case KindEnd:
		reason := inter.EndReason
		if reason == "" {
			reason = ending.ReasonUserEnded
		}
		return st.WithEnded(reason), nil
	case KindTurn:
	default:
		return st, fmt.Errorf("unknown interaction kind %q", kind)
	}

	st, userTurnID := appendUserRecords(st, inter)
	out, err := orch.ProcessTurn(st, inter.Response, orchestrator.TurnInput{
		UserTurnID:  userTurnID,
		FastForward: inter.FastForward,
	})
	if err != nil {
		return st, err
	}
	res.Applied = out.EngagementApplied
	res.ActionEvent = out.ActionEvent
	res.Achieved = out.Achievement != nil
	res.Reason = string(out.End.Reason)
	return out.State, nil
}

// appendUserRecords adds the dialogue record, then the gesture record. TurnID names the
// dialogue record, or the gesture record when there is no dialogue.
func appendUserRecords(st orchestrator.ConversationState, inter Interaction) (orchestrator.ConversationState, string) {
	var userTurnID string
	h := st.History
	if inter.UserText != "" {
		rec := history.NewRecord(history.RoleUser, inter.UserText)
		if inter.TurnID != "" {
			rec.ID = inter.TurnID
		}
		h = h.Append(rec)
		userTurnID = rec.ID
	}
	if inter.Gesture != "" {
		rec := history.NewRecord(history.RoleUserAction, inter.Gesture)
		if userTurnID == "" && inter.TurnID != "" {
			rec.ID = inter.TurnID
		}
		h = h.Append(rec)
		if userTurnID == "" {
			userTurnID = rec.ID
		}
	}
	st.History = h
	return st, userTurnID
}

func fill(res ReplayResult, st orchestrator.ConversationState) ReplayResult {
	res.Engagement = st.Score.Engagement
	res.Ended = st.Ended
	res.EndReason = st.EndReason
	if g := st.DisplayedGoal(); g != nil {
		res.GoalText = g.Text
	}
	return res
}

// #endregion replay

// #region summarize

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, final orchestrator.ConversationState) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		Ended:      final.Ended,
		EndReason:  final.EndReason,
		FinalState: final,
	}
	for _, r := range results {
		switch r.Action {
		case "processed":
			s.Processed++
		case "skipped":
			s.Skipped++
		case "error":
			s.Errors++
		}
	}
	return s
}

// #endregion summarize

// #region errors

// ErrNoStart is returned when a recorded session has no start snapshot.
var ErrNoStart = errors.New("session has no start snapshot")

// #endregion errors
