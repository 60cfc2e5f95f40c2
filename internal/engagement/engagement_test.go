package engagement

import (
	"math/rand"
	"testing"
)

// #region update-tests

func TestUpdate_NegativeDeltaWithDecay(t *testing.T) {
	res := Update(Score{Engagement: 30}, -5, Config{DecayPerTurn: 2})
	if res.Score.Engagement != 23 {
		t.Fatalf("expected engagement 23, got %d", res.Score.Engagement)
	}
	if res.Score.StagnantStreak != 1 {
		t.Errorf("expected stagnant streak 1, got %d", res.Score.StagnantStreak)
	}
	if res.Score.ZeroEngagementStreak != 0 {
		t.Errorf("expected zero streak 0, got %d", res.Score.ZeroEngagementStreak)
	}
	if res.Applied != -7 {
		t.Errorf("expected applied -7, got %d", res.Applied)
	}
}

func TestUpdate_PositiveDeltaResetsStagnation(t *testing.T) {
	res := Update(Score{Engagement: 40, StagnantStreak: 3}, 10, Config{DecayPerTurn: 2})
	// 40 + 10 - 2 - 3
	if res.Score.Engagement != 45 {
		t.Fatalf("expected 45, got %d", res.Score.Engagement)
	}
	if res.Score.StagnantStreak != 0 {
		t.Errorf("expected stagnant streak reset, got %d", res.Score.StagnantStreak)
	}
	if res.Penalty != 5 {
		t.Errorf("expected penalty 5, got %d", res.Penalty)
	}
}

func TestUpdate_ZeroDeltaCountsAsStagnant(t *testing.T) {
	res := Update(Score{Engagement: 50, StagnantStreak: 1}, 0, Config{DecayPerTurn: 1})
	if res.Score.StagnantStreak != 2 {
		t.Errorf("expected stagnant streak 2, got %d", res.Score.StagnantStreak)
	}
}

func TestUpdate_ClampsAtBounds(t *testing.T) {
	low := Update(Score{Engagement: 3}, -20, Config{DecayPerTurn: 2})
	if low.Score.Engagement != 0 {
		t.Errorf("expected clamp to 0, got %d", low.Score.Engagement)
	}
	if low.Score.ZeroEngagementStreak != 1 {
		t.Errorf("expected zero streak 1, got %d", low.Score.ZeroEngagementStreak)
	}

	high := Update(Score{Engagement: 95}, 30, Config{DecayPerTurn: 2})
	if high.Score.Engagement != 100 {
		t.Errorf("expected clamp to 100, got %d", high.Score.Engagement)
	}
}

func TestUpdate_ZeroStreakResetsWhenPositive(t *testing.T) {
	res := Update(Score{Engagement: 0, ZeroEngagementStreak: 2}, 10, Config{DecayPerTurn: 2})
	if res.Score.Engagement != 8 {
		t.Fatalf("expected 8, got %d", res.Score.Engagement)
	}
	if res.Score.ZeroEngagementStreak != 0 {
		t.Errorf("expected zero streak reset, got %d", res.Score.ZeroEngagementStreak)
	}
}

func TestUpdate_Deterministic(t *testing.T) {
	in := Score{Engagement: 61, StagnantStreak: 2, ZeroEngagementStreak: 0}
	a := Update(in, -3, DefaultConfig())
	b := Update(in, -3, DefaultConfig())
	if a != b {
		t.Fatalf("expected identical results, got %+v vs %+v", a, b)
	}
}

func TestUpdate_RandomSequencesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := DefaultConfig()
	score := cfg.Start()
	for i := 0; i < 5000; i++ {
		delta := rng.Intn(61) - 30
		prev := score
		score = Update(score, delta, cfg).Score
		if score.Engagement < MinEngagement || score.Engagement > MaxEngagement {
			t.Fatalf("turn %d: engagement %d out of range", i, score.Engagement)
		}
		if delta > 0 && score.StagnantStreak != 0 {
			t.Fatalf("turn %d: positive delta must reset stagnant streak", i)
		}
		if delta <= 0 && score.StagnantStreak != prev.StagnantStreak+1 {
			t.Fatalf("turn %d: stagnant streak %d, want %d", i, score.StagnantStreak, prev.StagnantStreak+1)
		}
		if score.Engagement > 0 && score.ZeroEngagementStreak != 0 {
			t.Fatalf("turn %d: zero streak must reset when engagement positive", i)
		}
		if score.Engagement <= 0 && score.ZeroEngagementStreak != prev.ZeroEngagementStreak+1 {
			t.Fatalf("turn %d: zero streak %d, want %d", i, score.ZeroEngagementStreak, prev.ZeroEngagementStreak+1)
		}
	}
}

// #endregion update-tests

// #region config-tests

func TestStartClampsInitial(t *testing.T) {
	if got := (Config{Initial: 140}).Start().Engagement; got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
	if got := DefaultConfig().Start(); got != (Score{Engagement: 50}) {
		t.Errorf("unexpected default start %+v", got)
	}
}

// #endregion config-tests
