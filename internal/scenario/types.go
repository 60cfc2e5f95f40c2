package scenario

import (
	"encoding/json"
	"strings"
)

// #region environment

// EnvironmentID names one of the built-in settings the persona can be placed in.
type EnvironmentID string

const (
	EnvCafe       EnvironmentID = "cafe"
	EnvPark       EnvironmentID = "park"
	EnvOffice     EnvironmentID = "office"
	EnvParty      EnvironmentID = "party"
	EnvLibrary    EnvironmentID = "library"
	EnvGym        EnvironmentID = "gym"
	EnvBeach      EnvironmentID = "beach"
	EnvRestaurant EnvironmentID = "restaurant"
	EnvClassroom  EnvironmentID = "classroom"
	EnvHome       EnvironmentID = "home"
)

var knownEnvironments = map[EnvironmentID]bool{
	EnvCafe:       true,
	EnvPark:       true,
	EnvOffice:     true,
	EnvParty:      true,
	EnvLibrary:    true,
	EnvGym:        true,
	EnvBeach:      true,
	EnvRestaurant: true,
	EnvClassroom:  true,
	EnvHome:       true,
}

// Environment is either a Known built-in setting or a Custom free-text one.
// Exactly one of the two fields is set; the zero value is "no environment".
type Environment struct {
	Known  EnvironmentID
	Custom string
}

// KnownEnvironment returns the Known variant.
func KnownEnvironment(id EnvironmentID) Environment {
	return Environment{Known: id}
}

// CustomEnvironment returns the Custom variant.
func CustomEnvironment(text string) Environment {
	return Environment{Custom: strings.TrimSpace(text)}
}

// ParseEnvironment maps a label onto the built-in set, falling back to Custom.
func ParseEnvironment(label string) Environment {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return Environment{}
	}
	id := EnvironmentID(strings.ToLower(trimmed))
	if knownEnvironments[id] {
		return KnownEnvironment(id)
	}
	return CustomEnvironment(trimmed)
}

// IsCustom reports whether the environment is free text.
func (e Environment) IsCustom() bool {
	return e.Known == "" && e.Custom != ""
}

// IsZero reports whether no environment is set.
func (e Environment) IsZero() bool {
	return e.Known == "" && e.Custom == ""
}

// Label returns the display text of either variant.
func (e Environment) Label() string {
	if e.Known != "" {
		return string(e.Known)
	}
	return e.Custom
}

func (e Environment) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Label())
}

func (e *Environment) UnmarshalJSON(b []byte) error {
	var label string
	if err := json.Unmarshal(b, &label); err != nil {
		return err
	}
	*e = ParseEnvironment(label)
	return nil
}

func (e Environment) MarshalYAML() (interface{}, error) {
	return e.Label(), nil
}

func (e *Environment) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var label string
	if err := unmarshal(&label); err != nil {
		return err
	}
	*e = ParseEnvironment(label)
	return nil
}

// #endregion environment

// #region persona

// Persona describes the generated character the user is talking to.
type Persona struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Appearance  string `json:"appearance" yaml:"appearance"`
	Mood        string `json:"mood" yaml:"mood"`
}

// #endregion persona

// #region visual

// Visual is the last-known visual state used to regenerate the persona image.
type Visual struct {
	Description string `json:"description" yaml:"description"`
	Pose        string `json:"pose" yaml:"pose"`
}

// #endregion visual

// #region scenario

// Scenario is the configuration the conversation runs under.
// InitialGoal is the goal preconfigured at session start; PinnedGoal is the goal the
// user has currently fixed (initially equal to InitialGoal when one is configured).
type Scenario struct {
	Persona     Persona     `json:"persona" yaml:"persona"`
	Environment Environment `json:"environment" yaml:"environment"`
	InitialGoal string      `json:"initial_goal,omitempty" yaml:"goal"`
	PinnedGoal  string      `json:"pinned_goal,omitempty" yaml:"-"`
	Visual      *Visual     `json:"visual,omitempty" yaml:"visual"`
	Backstory   []string    `json:"-" yaml:"backstory"`
}

// HasVisual reports whether an image can be generated for this scenario.
func (s Scenario) HasVisual() bool {
	return s.Visual != nil && strings.TrimSpace(s.Visual.Description) != ""
}

// LastKnownPose returns the pose of the current visual, or "".
func (s Scenario) LastKnownPose() string {
	if s.Visual == nil {
		return ""
	}
	return s.Visual.Pose
}

// #endregion scenario

// #region deltas

// PersonaDelta carries persona fields the turn service changed. Empty fields are left alone.
type PersonaDelta struct {
	Description string `json:"description,omitempty"`
	Appearance  string `json:"appearance,omitempty"`
	Mood        string `json:"mood,omitempty"`
}

// VisualDelta carries visual fields the turn service changed. Empty fields are left alone.
type VisualDelta struct {
	Description string `json:"description,omitempty"`
	Pose        string `json:"pose,omitempty"`
}

// #endregion deltas
