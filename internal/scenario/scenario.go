package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region load

// Load reads a YAML scenario file and prepares it for a new session.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML scenario document and prepares it for a new session.
func Parse(data []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	return Prepare(s), nil
}

// Prepare normalizes a scenario for session start: a configured goal starts pinned.
func Prepare(s Scenario) Scenario {
	s.InitialGoal = strings.TrimSpace(s.InitialGoal)
	s.PinnedGoal = s.InitialGoal
	if s.Visual != nil {
		v := *s.Visual
		s.Visual = &v
	}
	return s
}

// #endregion load

// #region apply

// Apply returns a copy of s with the turn's persona, environment and visual deltas applied.
// An environment label outside the built-in set becomes a Custom environment.
func Apply(s Scenario, persona *PersonaDelta, environment string, visual *VisualDelta) Scenario {
	out := s
	if s.Visual != nil {
		v := *s.Visual
		out.Visual = &v
	}

	if persona != nil {
		if persona.Description != "" {
			out.Persona.Description = persona.Description
		}
		if persona.Appearance != "" {
			out.Persona.Appearance = persona.Appearance
		}
		if persona.Mood != "" {
			out.Persona.Mood = persona.Mood
		}
	}

	if env := ParseEnvironment(environment); !env.IsZero() {
		out.Environment = env
	}

	if visual != nil && (visual.Description != "" || visual.Pose != "") {
		if out.Visual == nil {
			out.Visual = &Visual{}
		}
		if visual.Description != "" {
			out.Visual.Description = visual.Description
		}
		if visual.Pose != "" {
			out.Visual.Pose = visual.Pose
		}
	}

	return out
}

// #endregion apply
