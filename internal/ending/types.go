package ending

// #region reason

// Reason names why a conversation ended.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonExplicit       Reason = "persona_ended"
	ReasonGoalAchieved   Reason = "goal_achieved"
	ReasonZeroEngagement Reason = "zero_engagement"
	ReasonUserEnded      Reason = "user_ended"
	ReasonSystemEnded    Reason = "system_ended"
)

// #endregion reason

// #region end-config

// EndConfig holds the thresholds for ending a conversation.
type EndConfig struct {
	ZeroStreakThreshold int // consecutive turns at or below zero engagement (default 3)
}

// DefaultEndConfig returns the standard thresholds.
func DefaultEndConfig() EndConfig {
	return EndConfig{ZeroStreakThreshold: 3}
}

// #endregion end-config

// #region end-input

// EndInput is the post-turn state the checks look at.
type EndInput struct {
	ExplicitEnd           bool
	PreconfiguredAchieved bool
	Engagement            int
	ZeroEngagementStreak  int
}

// #endregion end-input

// #region end-check

// EndCheck captures a single check result.
type EndCheck struct {
	Name      string
	Value     int
	Triggered bool
}

// #endregion end-check

// #region end-result

// EndResult is the outcome of the end-of-conversation evaluation.
type EndResult struct {
	End    bool
	Reason Reason
	Checks []EndCheck
}

// Triggered returns the names of the checks that fired, in evaluation order.
func (r EndResult) Triggered() []string {
	var names []string
	for _, c := range r.Checks {
		if c.Triggered {
			names = append(names, c.Name)
		}
	}
	return names
}

// #endregion end-result
