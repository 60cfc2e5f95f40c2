package replay

import (
	"testing"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/action"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/engagement"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// helper: config with initial engagement 30 and decay 2.
func testConfig() orchestrator.Config {
	return orchestrator.Config{
		Engagement: engagement.Config{Initial: 30, DecayPerTurn: 2},
		End:        ending.DefaultEndConfig(),
	}
}

// helper: fresh conversation in a cafe.
func startState() orchestrator.ConversationState {
	sc := scenario.Scenario{
		Persona:     scenario.Persona{Name: "Mara"},
		Environment: scenario.KnownEnvironment(scenario.EnvCafe),
	}
	return orchestrator.NewConversation(scenario.Prepare(sc), testConfig().Engagement.Start())
}

// helper: scored user turn.
func scored(turnID, text string, delta int) Interaction {
	return Interaction{
		TurnID:   turnID,
		UserText: text,
		Response: turn.Response{
			Segments: []history.Segment{{Kind: history.SegmentDialogue, Text: "..."}},
			Feedback: &history.Feedback{EngagementDelta: delta},
		},
	}
}

// 1. Scored turns follow engagement' = e + delta - decay - stagnant.
func TestReplay_ScoresTurns(t *testing.T) {
	results, final := Replay(startState(), []Interaction{
		scored("u1", "hi", 5),
		scored("u2", "so", -1),
		scored("u3", "well", 0),
	}, testConfig())

	want := []int{33, 30, 27}
	for i, w := range want {
		if results[i].Action != "processed" {
			t.Fatalf("turn %d: action=%s (%s)", i, results[i].Action, results[i].Reason)
		}
		if results[i].Engagement != w {
			t.Errorf("turn %d: engagement=%d, want %d", i, results[i].Engagement, w)
		}
	}
	if results[0].Applied != 3 {
		t.Errorf("applied=%d, want 3", results[0].Applied)
	}
	if final.Score.StagnantStreak != 2 {
		t.Errorf("stagnant=%d, want 2", final.Score.StagnantStreak)
	}
}

// 2. Feedback lands on the record named by TurnID.
func TestReplay_FeedbackAttachedToTurnID(t *testing.T) {
	_, final := Replay(startState(), []Interaction{scored("u1", "hi", 4)}, testConfig())

	rec, ok := final.History.Find("u1")
	if !ok {
		t.Fatal("user record u1 not in history")
	}
	if rec.Feedback == nil || rec.Feedback.EngagementDelta != 4 {
		t.Errorf("feedback not attached: %+v", rec.Feedback)
	}
	if final.PendingFeedback == nil || final.PendingFeedback.UserTurnID != "u1" {
		t.Errorf("pending feedback=%+v", final.PendingFeedback)
	}
}

// 3. A gesture-only turn uses TurnID for the gesture record.
func TestReplay_GestureOnly(t *testing.T) {
	inter := scored("g1", "", 2)
	inter.Gesture = "waves"
	_, final := Replay(startState(), []Interaction{inter}, testConfig())

	rec, ok := final.History.Find("g1")
	if !ok {
		t.Fatal("gesture record g1 not in history")
	}
	if rec.Role != history.RoleUserAction || rec.Feedback == nil {
		t.Errorf("record=%+v", rec)
	}
}

// 4. Dialogue and gesture: dialogue first, gesture second.
func TestReplay_DialogueThenGesture(t *testing.T) {
	inter := scored("u1", "hello", 1)
	inter.Gesture = "smiles"
	_, final := Replay(startState(), []Interaction{inter}, testConfig())

	records := final.History.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "u1" || records[0].Role != history.RoleUser {
		t.Errorf("first record=%+v", records[0])
	}
	if records[1].Role != history.RoleUserAction || records[1].Text != "smiles" {
		t.Errorf("second record=%+v", records[1])
	}
	if records[2].Role != history.RoleAI {
		t.Errorf("third record role=%s", records[2].Role)
	}
}

// 5. Interactions after the end are skipped and leave the state alone.
func TestReplay_SkipsAfterEnd(t *testing.T) {
	end := scored("u1", "bye", 0)
	end.Response.EndingConversation = true

	results, final := Replay(startState(), []Interaction{end, scored("u2", "wait", 10)}, testConfig())

	if !results[0].Ended || results[0].EndReason != ending.ReasonExplicit {
		t.Errorf("first: ended=%v reason=%s", results[0].Ended, results[0].EndReason)
	}
	if results[1].Action != "skipped" {
		t.Errorf("second action=%s, want skipped", results[1].Action)
	}
	if results[1].Engagement != results[0].Engagement {
		t.Errorf("engagement moved after end: %d -> %d", results[0].Engagement, results[1].Engagement)
	}
	if _, ok := final.History.Find("u2"); ok {
		t.Error("skipped turn must not append records")
	}
}

// 6. Pin and unpin operations replay against the state.
func TestReplay_PinUnpin(t *testing.T) {
	results, final := Replay(startState(), []Interaction{
		{Kind: KindPin, PinText: "learn her name"},
		{Kind: KindUnpin},
	}, testConfig())

	if results[0].GoalText != "learn her name" {
		t.Errorf("pinned goal=%q", results[0].GoalText)
	}
	if final.Scenario.PinnedGoal != "" {
		t.Errorf("pinned goal after unpin=%q", final.Scenario.PinnedGoal)
	}
}

// 7. An empty pin text is an error result, not a state change.
func TestReplay_EmptyPinIsError(t *testing.T) {
	results, _ := Replay(startState(), []Interaction{{Kind: KindPin}}, testConfig())
	if results[0].Action != "error" {
		t.Errorf("action=%s, want error", results[0].Action)
	}
}

// 8. End operations default to user_ended.
func TestReplay_EndDefaultsToUserEnded(t *testing.T) {
	results, final := Replay(startState(), []Interaction{{Kind: KindEnd}}, testConfig())
	if !final.Ended || final.EndReason != ending.ReasonUserEnded {
		t.Errorf("ended=%v reason=%s", final.Ended, final.EndReason)
	}
	if results[0].Action != "processed" {
		t.Errorf("action=%s", results[0].Action)
	}
}

// 9. Unknown kinds are reported as errors.
func TestReplay_UnknownKind(t *testing.T) {
	results, _ := Replay(startState(), []Interaction{{Kind: "teleport"}}, testConfig())
	if results[0].Action != "error" {
		t.Errorf("action=%s, want error", results[0].Action)
	}
}

// 10. Fast-forward completes a lapsed action.
func TestReplay_FastForwardCompletesAction(t *testing.T) {
	started := Interaction{Response: turn.Response{
		Segments:     []history.Segment{{Kind: history.SegmentNarration, Text: "They walk."}},
		ActiveAction: &action.Report{Description: "walk to the pier", Progress: 30},
	}}
	lapsed := Interaction{Response: turn.Response{
		Segments: []history.Segment{{Kind: history.SegmentNarration, Text: "Waves."}},
	}}
	ff := lapsed
	ff.FastForward = true

	results, final := Replay(startState(), []Interaction{started, lapsed, ff}, testConfig())

	events := []action.Event{action.EventStarted, action.EventPaused, action.EventCompleted}
	for i, ev := range events {
		if results[i].ActionEvent != ev {
			t.Errorf("turn %d: event=%s, want %s", i, results[i].ActionEvent, ev)
		}
	}
	if final.Action != nil {
		t.Errorf("action still active: %+v", final.Action)
	}
}

// 11. Zero engagement for three turns ends the conversation.
func TestReplay_ZeroEngagementEnds(t *testing.T) {
	results, _ := Replay(startState(), []Interaction{
		scored("u1", "a", -50),
		scored("u2", "b", -50),
		scored("u3", "c", -50),
	}, testConfig())

	if results[1].Ended {
		t.Error("ended after two zero turns")
	}
	if !results[2].Ended || results[2].EndReason != ending.ReasonZeroEngagement {
		t.Errorf("third: ended=%v reason=%s", results[2].Ended, results[2].EndReason)
	}
}

// 12. Summarize counts outcomes.
func TestSummarize(t *testing.T) {
	end := scored("u2", "bye", 0)
	end.Response.EndingConversation = true
	results, final := Replay(startState(), []Interaction{
		scored("u1", "hi", 3),
		{Kind: KindPin},
		end,
		scored("u3", "wait", 1),
	}, testConfig())

	s := Summarize(results, final)
	if s.TotalTurns != 4 || s.Processed != 2 || s.Errors != 1 || s.Skipped != 1 {
		t.Errorf("summary=%+v", s)
	}
	if !s.Ended || s.EndReason != ending.ReasonExplicit {
		t.Errorf("ended=%v reason=%s", s.Ended, s.EndReason)
	}
}
