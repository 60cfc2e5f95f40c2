package goal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name      string
		displayed string
		emerging  string
		pinned    bool
		want      *history.GoalChange
	}{
		{"established", "", "get her number", false, &history.GoalChange{Kind: history.GoalEstablished, To: "get her number"}},
		{"removed", "get her number", "", false, &history.GoalChange{Kind: history.GoalRemoved, From: "get her number"}},
		{"changed", "get her number", "plan a date", false, &history.GoalChange{Kind: history.GoalChanged, From: "get her number", To: "plan a date"}},
		{"unchanged", "plan a date", "Plan a date", false, nil},
		{"none", "", "", false, nil},
		{"pinned never annotates", "make a friend", "plan a date", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.displayed, tt.emerging, tt.pinned))
		})
	}
}

func TestResolveEmergingGoal(t *testing.T) {
	ann := Diff("", "learn her name", false)
	out := Resolve(Input{Emerging: "learn her name", Progress: 30, Annotation: ann})

	require.NotNil(t, out.Goal)
	assert.Equal(t, State{Text: "learn her name", Progress: 30}, *out.Goal)
	assert.True(t, out.Changed)
	assert.Equal(t, PhaseEmerging, out.Phase)
	assert.Nil(t, out.Achievement)
}

func TestResolvePinnedWinsOverEmerging(t *testing.T) {
	out := Resolve(Input{PinnedGoal: "make a friend", Emerging: "order coffee", Progress: 20})
	require.NotNil(t, out.Goal)
	assert.Equal(t, "make a friend", out.Goal.Text)
	assert.True(t, out.Goal.Pinned)
	assert.Equal(t, PhasePinned, out.Phase)
	assert.False(t, out.Changed)
}

func TestResolveNoCandidateClearsGoal(t *testing.T) {
	out := Resolve(Input{Emerging: ""})
	assert.Nil(t, out.Goal)
	assert.Equal(t, PhaseNone, out.Phase)
}

func TestResolvePreconfiguredPinnedAchieved(t *testing.T) {
	out := Resolve(Input{
		PinnedGoal:  "make a friend",
		InitialGoal: "make a friend",
		Progress:    90,
		Achieved:    true,
	})

	assert.Nil(t, out.Goal)
	assert.Empty(t, out.PinnedGoal)
	assert.Equal(t, "make a friend", out.LastCompleted)
	require.NotNil(t, out.Achievement)
	assert.True(t, out.Achievement.Preconfigured)
	assert.False(t, out.Achievement.Toast)
	assert.True(t, out.Achievement.WasPinned)
	assert.Equal(t, PhaseAchieved, out.Phase)
}

func TestResolveAchievementByProgress(t *testing.T) {
	out := Resolve(Input{Emerging: "share a joke", Progress: 130})
	require.NotNil(t, out.Achievement)
	assert.True(t, out.Achievement.Toast)
	assert.Nil(t, out.Goal)
}

func TestResolveAchievementRaisedOnce(t *testing.T) {
	first := Resolve(Input{Emerging: "share a joke", Achieved: true})
	require.NotNil(t, first.Achievement)

	second := Resolve(Input{Emerging: "share a joke", Achieved: true, LastCompleted: first.LastCompleted})
	assert.Nil(t, second.Achievement)
	assert.Nil(t, second.Goal)

	third := Resolve(Input{Emerging: "plan a date", Achieved: true, LastCompleted: second.LastCompleted})
	require.NotNil(t, third.Achievement)
	assert.Equal(t, "plan a date", third.LastCompleted)
}

func TestResolveAchievementNotRepeatedAfterAnotherGoal(t *testing.T) {
	first := Resolve(Input{Emerging: "share a secret", Achieved: true})
	require.NotNil(t, first.Achievement)

	second := Resolve(Input{Emerging: "tell a joke", Achieved: true,
		LastCompleted: first.LastCompleted, Completed: first.Completed})
	require.NotNil(t, second.Achievement)
	assert.Equal(t, []string{"share a secret", "tell a joke"}, second.Completed)

	third := Resolve(Input{Emerging: "Share a Secret", Achieved: true,
		LastCompleted: second.LastCompleted, Completed: second.Completed})
	assert.Nil(t, third.Achievement)
	assert.Equal(t, "tell a joke", third.LastCompleted)
	assert.Equal(t, PhaseAchieved, third.Phase)
	assert.Len(t, first.Completed, 1, "inputs are not aliased")
}

func TestPinAndUnpin(t *testing.T) {
	cur := &State{Text: "plan a date", Progress: 40}
	pinned := Pin(cur, "plan a date")
	assert.Equal(t, State{Text: "plan a date", Progress: 40, Pinned: true}, *pinned)
	assert.False(t, cur.Pinned)

	other := Pin(cur, "make a friend")
	assert.Equal(t, 0, other.Progress)

	unpinned := Unpin(pinned)
	assert.False(t, unpinned.Pinned)
	assert.Equal(t, "plan a date", unpinned.Text)
	assert.True(t, pinned.Pinned)

	assert.Nil(t, Unpin(nil))
}
