package logging

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE provenance_log (
		version_id    TEXT NOT NULL,
		session_id    TEXT,
		turn_id       TEXT,
		trigger_type  TEXT NOT NULL,
		response_json TEXT,
		decision      TEXT NOT NULL,
		reason        TEXT,
		created_at    TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		VersionID:    "v1",
		SessionID:    "s1",
		TurnID:       "u1",
		TriggerType:  "user_turn",
		ResponseJSON: `{"feedback":{"engagement_delta":3}}`,
		Decision:     DecisionCommit,
		Reason:       "turn processed",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var versionID, decision, response string
	db.QueryRow("SELECT version_id, decision, response_json FROM provenance_log").Scan(&versionID, &decision, &response)
	if versionID != "v1" {
		t.Errorf("expected version_id 'v1', got %q", versionID)
	}
	if decision != "commit" {
		t.Errorf("expected decision 'commit', got %q", decision)
	}
	if response != entry.ResponseJSON {
		t.Errorf("expected response json kept verbatim, got %q", response)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		VersionID:   "v2",
		TriggerType: "pin",
		Decision:    DecisionCommit,
	}

	before := time.Now().UTC()
	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		VersionID:   "v3",
		TriggerType: "silent_continue",
		Decision:    DecisionFailed,
		CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sessionID, turnID, response, reason sql.NullString
	db.QueryRow("SELECT session_id, turn_id, response_json, reason FROM provenance_log").Scan(
		&sessionID, &turnID, &response, &reason,
	)
	if sessionID.Valid {
		t.Error("expected NULL session_id for empty string")
	}
	if turnID.Valid {
		t.Error("expected NULL turn_id for empty string")
	}
	if response.Valid {
		t.Error("expected NULL response_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	entry := ProvenanceEntry{
		VersionID:   "v4",
		TriggerType: "user_turn",
		Decision:    DecisionCommit,
	}

	err := LogDecision(db, entry)
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests

// #region setup-tests
func TestSetupWriter_JSONAndLevel(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	SetupWriter(&buf, "warn", "json")
	log.Info().Msg("[ORCH] hidden")
	log.Warn().Str("record_id", "r1").Msg("[IMAGE] shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"record_id":"r1"`) {
		t.Errorf("expected JSON field in output: %s", out)
	}
}

func TestSetupWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	SetupWriter(&bytes.Buffer{}, "chatty", "console")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info, got %s", zerolog.GlobalLevel())
	}
}

// #endregion setup-tests
