package engagement

// #region score

// Score is the engagement triple carried across turns.
type Score struct {
	Engagement           int `json:"engagement"`
	StagnantStreak       int `json:"stagnant_streak"`
	ZeroEngagementStreak int `json:"zero_engagement_streak"`
}

// #endregion score

// #region config

const (
	MinEngagement = 0
	MaxEngagement = 100
)

// Config holds the per-turn scoring parameters.
type Config struct {
	Initial      int // engagement at session start (default 50)
	DecayPerTurn int // subtracted on every scored turn (default 2)
}

// DefaultConfig returns the standard scoring parameters.
func DefaultConfig() Config {
	return Config{
		Initial:      50,
		DecayPerTurn: 2,
	}
}

// Start returns the score a new conversation begins with.
func (c Config) Start() Score {
	return Score{Engagement: clamp(c.Initial)}
}

// #endregion config

// #region result

// Result bundles everything returned by Update.
type Result struct {
	Score Score
	// Applied is the net change after decay, stagnation penalty and clamping.
	Applied int
	// Penalty is decay plus the stagnation penalty subtracted this turn.
	Penalty int
}

// #endregion result
