package ending

// #region evaluator

// Evaluator decides whether a turn ends the conversation.
type Evaluator struct {
	config EndConfig
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(config EndConfig) *Evaluator {
	if config.ZeroStreakThreshold <= 0 {
		config.ZeroStreakThreshold = DefaultEndConfig().ZeroStreakThreshold
	}
	return &Evaluator{config: config}
}

// Run evaluates every check; the first triggered check in order
// explicit end, preconfigured goal, zero engagement names the reason.
func (e *Evaluator) Run(in EndInput) EndResult {
	checks := []EndCheck{
		{Name: "explicit_end", Value: boolInt(in.ExplicitEnd), Triggered: in.ExplicitEnd},
		{Name: "preconfigured_goal_achieved", Value: boolInt(in.PreconfiguredAchieved), Triggered: in.PreconfiguredAchieved},
		{
			Name:      "zero_engagement_streak",
			Value:     in.ZeroEngagementStreak,
			Triggered: in.Engagement <= 0 && in.ZeroEngagementStreak >= e.config.ZeroStreakThreshold,
		},
	}
	reasons := []Reason{ReasonExplicit, ReasonGoalAchieved, ReasonZeroEngagement}

	for i, c := range checks {
		if c.Triggered {
			return EndResult{End: true, Reason: reasons[i], Checks: checks}
		}
	}
	return EndResult{Checks: checks}
}

// #endregion evaluator

// #region helpers

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
