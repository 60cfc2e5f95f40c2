package engagement

// #region update

// Update is a pure function that scores one turn:
//
//	engagement' = clamp(engagement + delta - decay - stagnantStreak, 0, 100)
//
// The stagnation penalty uses the streak as it stood before this turn. The stagnant
// streak resets on a positive delta and otherwise grows by one; the zero-engagement
// streak resets when the new engagement is positive and otherwise grows by one.
func Update(old Score, delta int, config Config) Result {
	penalty := config.DecayPerTurn + old.StagnantStreak
	next := clamp(old.Engagement + delta - penalty)

	stagnant := old.StagnantStreak + 1
	if delta > 0 {
		stagnant = 0
	}

	zero := old.ZeroEngagementStreak + 1
	if next > MinEngagement {
		zero = 0
	}

	return Result{
		Score: Score{
			Engagement:           next,
			StagnantStreak:       stagnant,
			ZeroEngagementStreak: zero,
		},
		Applied: next - old.Engagement,
		Penalty: penalty,
	}
}

// #endregion update

// #region helpers

func clamp(v int) int {
	if v < MinEngagement {
		return MinEngagement
	}
	if v > MaxEngagement {
		return MaxEngagement
	}
	return v
}

// #endregion helpers
