package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/engagement"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string            `json:"description"`
	Config      FixtureConfig     `json:"config"`
	Scenario    scenario.Scenario `json:"scenario"`
	Backstory   []string          `json:"backstory,omitempty"`
	Steps       []FixtureStep     `json:"steps"`
}

// FixtureConfig mirrors orchestrator.Config with JSON tags. Zero fields take defaults.
type FixtureConfig struct {
	InitialEngagement   int `json:"initial_engagement"`
	DecayPerTurn        int `json:"decay_per_turn"`
	ZeroStreakThreshold int `json:"zero_streak_threshold"`
}

// FixtureStep is one recorded operation plus what the replay should observe after it.
type FixtureStep struct {
	Kind        Kind          `json:"kind,omitempty"`
	TurnID      string        `json:"turn_id,omitempty"`
	UserText    string        `json:"user_text,omitempty"`
	Gesture     string        `json:"gesture,omitempty"`
	FastForward bool          `json:"fast_forward,omitempty"`
	PinText     string        `json:"pin_text,omitempty"`
	EndReason   ending.Reason `json:"end_reason,omitempty"`
	Response    turn.Response `json:"response"`

	Expected *FixtureExpected `json:"expected,omitempty"`
}

// FixtureExpected lists the checks for one step. Nil fields are not checked.
type FixtureExpected struct {
	Action     string        `json:"action,omitempty"`
	Engagement *int          `json:"engagement,omitempty"`
	Ended      *bool         `json:"ended,omitempty"`
	EndReason  ending.Reason `json:"end_reason,omitempty"`
	GoalText   *string       `json:"goal_text,omitempty"`
}

// #endregion fixture-types

// #region load

// LoadFixture reads and parses a fixture JSON file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("fixture %s has no steps", path)
	}
	return &f, nil
}

// #endregion load

// #region converters

// ToOrchestratorConfig converts to the orchestrator's parameters.
func (fc FixtureConfig) ToOrchestratorConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	if fc.InitialEngagement != 0 {
		cfg.Engagement.Initial = fc.InitialEngagement
	}
	if fc.DecayPerTurn != 0 {
		cfg.Engagement.DecayPerTurn = fc.DecayPerTurn
	}
	if fc.ZeroStreakThreshold != 0 {
		cfg.End.ZeroStreakThreshold = fc.ZeroStreakThreshold
	}
	return cfg
}

// StartState builds the conversation the fixture's steps run against.
func (f *Fixture) StartState(cfg engagement.Config) orchestrator.ConversationState {
	return orchestrator.NewConversation(scenario.Prepare(f.Scenario), cfg.Start(), f.Backstory...)
}

// ToInteraction converts a fixture step to a replay Interaction.
func (fs FixtureStep) ToInteraction() Interaction {
	return Interaction{
		Kind:        fs.Kind,
		TurnID:      fs.TurnID,
		UserText:    fs.UserText,
		Gesture:     fs.Gesture,
		FastForward: fs.FastForward,
		Response:    fs.Response,
		PinText:     fs.PinText,
		EndReason:   fs.EndReason,
	}
}

// Interactions converts every step.
func (f *Fixture) Interactions() []Interaction {
	out := make([]Interaction, len(f.Steps))
	for i := range f.Steps {
		out[i] = f.Steps[i].ToInteraction()
	}
	return out
}

// #endregion converters

// #region verify

// Run replays the fixture and returns its results, the final state and every
// expectation that did not hold.
func (f *Fixture) Run() ([]ReplayResult, orchestrator.ConversationState, []string) {
	cfg := f.Config.ToOrchestratorConfig()
	results, final := Replay(f.StartState(cfg.Engagement), f.Interactions(), cfg)
	return results, final, f.Verify(results)
}

// Verify compares results against the steps' expectations.
func (f *Fixture) Verify(results []ReplayResult) []string {
	var mismatches []string
	if len(results) != len(f.Steps) {
		return append(mismatches, fmt.Sprintf("expected %d results, got %d", len(f.Steps), len(results)))
	}
	for i, step := range f.Steps {
		exp := step.Expected
		if exp == nil {
			continue
		}
		got := results[i]
		if exp.Action != "" && got.Action != exp.Action {
			mismatches = append(mismatches, fmt.Sprintf("step %d: action=%s, want %s (%s)", i, got.Action, exp.Action, got.Reason))
		}
		if exp.Engagement != nil && got.Engagement != *exp.Engagement {
			mismatches = append(mismatches, fmt.Sprintf("step %d: engagement=%d, want %d", i, got.Engagement, *exp.Engagement))
		}
		if exp.Ended != nil && got.Ended != *exp.Ended {
			mismatches = append(mismatches, fmt.Sprintf("step %d: ended=%v, want %v", i, got.Ended, *exp.Ended))
		}
		if exp.EndReason != "" && got.EndReason != exp.EndReason {
			mismatches = append(mismatches, fmt.Sprintf("step %d: end_reason=%s, want %s", i, got.EndReason, exp.EndReason))
		}
		if exp.GoalText != nil && got.GoalText != *exp.GoalText {
			mismatches = append(mismatches, fmt.Sprintf("step %d: goal=%q, want %q", i, got.GoalText, *exp.GoalText))
		}
	}
	return mismatches
}

// #endregion verify

// #region export

// ErrResumedStart is returned when a session's start snapshot already holds turns, so
// a fixture could not rebuild it from the scenario alone.
var ErrResumedStart = errors.New("session starts from a resumed conversation")

// ExportFixture turns a recorded session into a fixture whose expectations are the
// stored outcomes. cfg supplies the decay and threshold the session ran with.
func ExportFixture(rec *Recorded, cfg orchestrator.Config, description string) (*Fixture, error) {
	f := &Fixture{
		Description: description,
		Config: FixtureConfig{
			InitialEngagement:   rec.Start.Score.Engagement,
			DecayPerTurn:        cfg.Engagement.DecayPerTurn,
			ZeroStreakThreshold: cfg.End.ZeroStreakThreshold,
		},
		Scenario: rec.Start.Scenario,
	}
	for _, r := range rec.Start.History.Records() {
		if r.Role != history.RoleBackstory {
			return nil, ErrResumedStart
		}
		f.Backstory = append(f.Backstory, r.Text)
	}

	for i, inter := range rec.Interactions {
		exp := rec.Expected[i]
		score, ended := exp.Engagement, exp.Ended
		step := FixtureStep{
			Kind:        inter.Kind,
			TurnID:      inter.TurnID,
			UserText:    inter.UserText,
			Gesture:     inter.Gesture,
			FastForward: inter.FastForward,
			PinText:     inter.PinText,
			EndReason:   inter.EndReason,
			Response:    inter.Response,
			Expected:    &FixtureExpected{Engagement: &score, Ended: &ended},
		}
		if step.Kind == KindTurn {
			step.Kind = ""
		}
		f.Steps = append(f.Steps, step)
	}
	return f, nil
}

// #endregion export
