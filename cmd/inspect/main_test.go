package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/engagement"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/logging"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/state"
)

func seededStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "inspect.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	st := orchestrator.NewConversation(scenario.Prepare(scenario.Scenario{InitialGoal: "make a friend"}), engagement.Score{Engagement: 42})
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, id := range []string{"version-one", "version-two"} {
		if _, err := store.CommitSnapshot(state.SnapshotRecord{
			VersionID:  id,
			SessionID:  "session-a",
			StateJSON:  string(data),
			Engagement: 42,
		}); err != nil {
			t.Fatalf("CommitSnapshot: %v", err)
		}
		if err := logging.LogDecision(store.DB(), logging.ProvenanceEntry{
			VersionID:   id,
			SessionID:   "session-a",
			TriggerType: "start",
			Decision:    logging.DecisionCommit,
			Reason:      "conversation started",
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}
	return store
}

func TestListMode(t *testing.T) {
	store := seededStore(t)
	var out bytes.Buffer
	if err := runListMode(store, 10, false, &out); err != nil {
		t.Fatalf("runListMode: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "version-") || !strings.Contains(got, "start") {
		t.Errorf("unexpected table:\n%s", got)
	}
}

func TestDetailMode_JSON(t *testing.T) {
	store := seededStore(t)
	var out bytes.Buffer
	if err := runDetailMode(store, "version-two", true, &out); err != nil {
		t.Fatalf("runDetailMode: %v", err)
	}
	var d detailOutput
	if err := json.Unmarshal(out.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if d.ParentID != "version-one" {
		t.Errorf("parent=%s, want version-one", d.ParentID)
	}
	if d.Summary.Engagement != 42 || d.Summary.Goal != "make a friend" || !d.Summary.GoalPinned {
		t.Errorf("summary=%+v", d.Summary)
	}
}

func TestRestore(t *testing.T) {
	store := seededStore(t)
	var out bytes.Buffer
	if err := runRestore(store, "version-one", &out); err != nil {
		t.Fatalf("runRestore: %v", err)
	}
	cur, err := store.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != "version-one" {
		t.Errorf("active=%s, want version-one", cur.VersionID)
	}

	if err := runRestore(store, "missing", &out); err == nil {
		t.Error("expected error restoring a missing version")
	}
}
