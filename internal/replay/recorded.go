package replay

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/logging"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/state"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// #region types

// Recorded is a stored session turned back into replayable input.
type Recorded struct {
	SessionID    string
	Start        orchestrator.ConversationState
	Interactions []Interaction
	// Expected holds the stored outcome of each interaction, index-aligned.
	Expected []Outcome
}

// Outcome is what the live session committed after one interaction.
type Outcome struct {
	VersionID  string
	Engagement int
	Ended      bool
}

// #endregion types

// #region extract

// FromStore loads a session's snapshots oldest first and extracts its interactions.
// An empty sessionID selects the most recent session.
func FromStore(store *state.Store, sessionID string) (*Recorded, error) {
	if sessionID == "" {
		id, err := store.LatestSessionID()
		if err != nil {
			return nil, fmt.Errorf("latest session: %w", err)
		}
		sessionID = id
	}
	versions, err := store.SessionHistory(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	rec, err := FromVersions(versions)
	if err != nil {
		return nil, err
	}
	rec.SessionID = sessionID
	return rec, nil
}

// FromVersions extracts interactions from a session's versions ordered oldest first.
// Failed turns are skipped; their successful retry appears as a later commit.
func FromVersions(versions []state.VersionWithProvenance) (*Recorded, error) {
	if len(versions) == 0 || versions[0].TriggerType != "start" {
		return nil, ErrNoStart
	}
	start, err := decodeState(versions[0].StateJSON)
	if err != nil {
		return nil, fmt.Errorf("decode start %s: %w", versions[0].VersionID, err)
	}
	rec := &Recorded{SessionID: versions[0].SessionID, Start: start}

	for _, v := range versions[1:] {
		if v.Decision != logging.DecisionCommit {
			continue
		}
		inter, ok, err := toInteraction(v)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", v.VersionID, err)
		}
		if !ok {
			continue
		}
		rec.Interactions = append(rec.Interactions, inter)
		rec.Expected = append(rec.Expected, Outcome{
			VersionID:  v.VersionID,
			Engagement: v.Engagement,
			Ended:      v.Ended,
		})
	}
	return rec, nil
}

func toInteraction(v state.VersionWithProvenance) (Interaction, bool, error) {
	switch v.TriggerType {
	case "pin":
		return Interaction{Kind: KindPin, PinText: v.Reason}, true, nil
	case "unpin":
		return Interaction{Kind: KindUnpin}, true, nil
	case "end":
		return Interaction{Kind: KindEnd, EndReason: ending.Reason(v.Reason)}, true, nil
	case string(history.TriggerUserTurn), string(history.TriggerSilentContinue), string(history.TriggerFastForward):
	default:
		return Interaction{}, false, nil
	}

	var resp turn.Response
	if err := json.Unmarshal([]byte(v.ResponseJSON), &resp); err != nil {
		return Interaction{}, false, fmt.Errorf("decode response: %w", err)
	}
	inter := Interaction{
		Kind:        KindTurn,
		TurnID:      v.TurnID,
		FastForward: v.TriggerType == string(history.TriggerFastForward),
		Response:    resp,
	}
	if v.TurnID == "" {
		return inter, true, nil
	}

	st, err := decodeState(v.StateJSON)
	if err != nil {
		return Interaction{}, false, fmt.Errorf("decode state: %w", err)
	}
	records := st.History.Records()
	for i, r := range records {
		if r.ID != v.TurnID {
			continue
		}
		switch r.Role {
		case history.RoleUser:
			inter.UserText = r.Text
			if i+1 < len(records) && records[i+1].Role == history.RoleUserAction {
				inter.Gesture = records[i+1].Text
			}
		case history.RoleUserAction:
			inter.Gesture = r.Text
		}
		break
	}
	return inter, true, nil
}

func decodeState(raw string) (orchestrator.ConversationState, error) {
	var st orchestrator.ConversationState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return orchestrator.ConversationState{}, err
	}
	return st, nil
}

// #endregion extract

// #region compare

// Compare lists every interaction whose replayed outcome differs from the stored one.
func (r *Recorded) Compare(results []ReplayResult) []string {
	var mismatches []string
	if len(results) != len(r.Expected) {
		return append(mismatches, fmt.Sprintf("expected %d results, got %d", len(r.Expected), len(results)))
	}
	for i, exp := range r.Expected {
		got := results[i]
		if got.Engagement != exp.Engagement {
			mismatches = append(mismatches, fmt.Sprintf("%s: engagement=%d, stored %d", exp.VersionID, got.Engagement, exp.Engagement))
		}
		if got.Ended != exp.Ended {
			mismatches = append(mismatches, fmt.Sprintf("%s: ended=%v, stored %v", exp.VersionID, got.Ended, exp.Ended))
		}
	}
	return mismatches
}

// #endregion compare
