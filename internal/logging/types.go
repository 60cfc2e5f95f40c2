package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table. One row is written per
// control-surface operation.
type ProvenanceEntry struct {
	VersionID    string
	SessionID    string
	TurnID       string // user record the operation submitted, if any
	TriggerType  string // "user_turn" | "silent_continue" | "fast_forward" | "retry" | "pin" | "unpin" | "end" | "image"
	ResponseJSON string // raw turn response, kept for replay
	Decision     string // "commit" | "failed"
	Reason       string
	CreatedAt    time.Time
}
// #endregion provenance-entry

// #region decisions
const (
	DecisionCommit = "commit"
	DecisionFailed = "failed"
)
// #endregion decisions
