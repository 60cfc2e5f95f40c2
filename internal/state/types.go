package state

import "time"

// #region snapshot-record
// SnapshotRecord is one committed version of a conversation. StateJSON holds the
// serialized conversation state; Engagement is denormalized for listing.
type SnapshotRecord struct {
	VersionID  string
	ParentID   string
	SessionID  string
	TurnID     string
	StateJSON  string
	Engagement int
	Ended      bool
	CreatedAt  time.Time
}
// #endregion snapshot-record

// #region version-with-provenance
// VersionWithProvenance pairs a snapshot with the provenance row that produced it.
type VersionWithProvenance struct {
	SnapshotRecord
	TriggerType  string
	Decision     string
	Reason       string
	ResponseJSON string
}
// #endregion version-with-provenance
