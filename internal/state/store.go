package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS conversation_versions (
	version_id  TEXT PRIMARY KEY,
	parent_id   TEXT,
	session_id  TEXT NOT NULL,
	turn_id     TEXT,
	state_json  TEXT NOT NULL,
	engagement  INTEGER NOT NULL,
	ended       INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES conversation_versions(version_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL,
	session_id    TEXT,
	turn_id       TEXT,
	trigger_type  TEXT NOT NULL,
	response_json TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES conversation_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_state (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES conversation_versions(version_id)
);
`
// #endregion schema

// timeFormat is fixed width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const versionColumns = `v.version_id, v.parent_id, v.session_id, v.turn_id, v.state_json, v.engagement, v.ended, v.created_at`

// #region store-struct
// Store manages versioned conversation snapshots in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Str("path", dbPath).Msg("[STORE] opened")
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-migrated database. Used by tests.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region commit-snapshot
// CommitSnapshot inserts a new version and moves the active pointer to it atomically.
// An empty ParentID is filled from the current active version.
func (s *Store) CommitSnapshot(rec SnapshotRecord) (SnapshotRecord, error) {
	if rec.VersionID == "" {
		return SnapshotRecord{}, fmt.Errorf("commit snapshot: empty version id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if rec.ParentID == "" {
		var active string
		err := tx.QueryRow(`SELECT version_id FROM active_state WHERE id = 1`).Scan(&active)
		switch {
		case err == nil:
			rec.ParentID = active
		case err != sql.ErrNoRows:
			return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
		}
	}

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	var turnPtr interface{}
	if rec.TurnID != "" {
		turnPtr = rec.TurnID
	}

	_, err = tx.Exec(
		`INSERT INTO conversation_versions (version_id, parent_id, session_id, turn_id, state_json, engagement, ended, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, rec.SessionID, turnPtr, rec.StateJSON, rec.Engagement,
		boolToInt(rec.Ended), rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_state (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SnapshotRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}
// #endregion commit-snapshot

// #region get-current
// GetCurrent reads the active version.
func (s *Store) GetCurrent() (SnapshotRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_state WHERE id = 1`).Scan(&versionID)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}
// #endregion get-current

// #region get-version
// GetVersion retrieves a specific version by ID.
func (s *Store) GetVersion(id string) (SnapshotRecord, error) {
	row := s.db.QueryRow(`SELECT `+versionColumns+` FROM conversation_versions v WHERE v.version_id = ?`, id)
	rec, err := scanSnapshot(row)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// GetVersionWithProvenance retrieves a version joined with its latest provenance row.
func (s *Store) GetVersionWithProvenance(id string) (VersionWithProvenance, error) {
	row := s.db.QueryRow(provenanceQuery+` WHERE v.version_id = ?`, id)
	vp, err := scanWithProvenance(row)
	if err != nil {
		return VersionWithProvenance{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return vp, nil
}
// #endregion get-version

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	// Verify the target version exists
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM conversation_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_state SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	log.Info().Str("version_id", targetVersionID).Msg("[STORE] active version restored")
	return nil
}
// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions, newest first.
func (s *Store) ListVersions(limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+versionColumns+` FROM conversation_versions v ORDER BY v.created_at DESC, v.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const provenanceQuery = `SELECT ` + versionColumns + `,
	COALESCE(p.trigger_type, ''), COALESCE(p.decision, ''), COALESCE(p.reason, ''), COALESCE(p.response_json, '')
	FROM conversation_versions v
	LEFT JOIN provenance_log p ON p.id = (
		SELECT MAX(id) FROM provenance_log WHERE version_id = v.version_id
	)`

// ListVersionsWithProvenance returns the most recent versions with their provenance,
// newest first.
func (s *Store) ListVersionsWithProvenance(limit int) ([]VersionWithProvenance, error) {
	rows, err := s.db.Query(provenanceQuery+` ORDER BY v.created_at DESC, v.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()
	return collectWithProvenance(rows)
}

// SessionHistory returns every version of a session with its provenance, oldest first.
func (s *Store) SessionHistory(sessionID string) ([]VersionWithProvenance, error) {
	rows, err := s.db.Query(provenanceQuery+` WHERE v.session_id = ? ORDER BY v.created_at ASC, v.rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session history %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectWithProvenance(rows)
}

// LatestSessionID returns the session of the active version.
func (s *Store) LatestSessionID() (string, error) {
	cur, err := s.GetCurrent()
	if err != nil {
		return "", err
	}
	return cur.SessionID, nil
}
// #endregion list-versions

// #region scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var parentID, turnID sql.NullString
	var ended int
	var createdStr string
	if err := row.Scan(&rec.VersionID, &parentID, &rec.SessionID, &turnID, &rec.StateJSON, &rec.Engagement, &ended, &createdStr); err != nil {
		return SnapshotRecord{}, err
	}
	rec.ParentID = parentID.String
	rec.TurnID = turnID.String
	rec.Ended = ended != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

func scanWithProvenance(row rowScanner) (VersionWithProvenance, error) {
	var vp VersionWithProvenance
	var parentID, turnID sql.NullString
	var ended int
	var createdStr string
	err := row.Scan(
		&vp.VersionID, &parentID, &vp.SessionID, &turnID, &vp.StateJSON, &vp.Engagement, &ended, &createdStr,
		&vp.TriggerType, &vp.Decision, &vp.Reason, &vp.ResponseJSON,
	)
	if err != nil {
		return VersionWithProvenance{}, err
	}
	vp.ParentID = parentID.String
	vp.TurnID = turnID.String
	vp.Ended = ended != 0
	vp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return vp, nil
}

func collectWithProvenance(rows *sql.Rows) ([]VersionWithProvenance, error) {
	var out []VersionWithProvenance
	for rows.Next() {
		vp, err := scanWithProvenance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, vp)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion scanning
