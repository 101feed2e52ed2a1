// Package engagement classifies a guest session into escalating engagement stages.
package engagement

import "fmt"

// Stage is a session-scoped engagement classification.
type Stage int

const (
	StageInitial Stage = iota
	StageInterested
	StageEngaged
	StageCommitted
	StageUrgent
)

var stageNames = map[Stage]string{
	StageInitial:    "initial",
	StageInterested: "interested",
	StageEngaged:    "engaged",
	StageCommitted:  "committed",
	StageUrgent:     "urgent",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	*s = ParseStage(string(b))
	return nil
}

// ParseStage returns the stage with the given name, or StageInitial.
func ParseStage(name string) Stage {
	stage, _ := lookupStage(name)
	return stage
}

func lookupStage(name string) (Stage, bool) {
	for stage, n := range stageNames {
		if n == name {
			return stage, true
		}
	}
	return StageInitial, false
}

// Threshold moves a session to Stage once a counter reaches At.
// Token names the trigger fired when the boundary is reached.
type Threshold struct {
	At    int    `yaml:"at"`
	Stage string `yaml:"stage"`
	Token string `yaml:"token"`
}

// Thresholds are the time (seconds) and interaction boundaries, ascending.
type Thresholds struct {
	TimeSeconds  []Threshold `yaml:"time_seconds"`
	Interactions []Threshold `yaml:"interactions"`
}

// DefaultThresholds returns the built-in boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TimeSeconds: []Threshold{
			{At: 120, Stage: "interested", Token: "time_2min"},
			{At: 300, Stage: "engaged", Token: "time_5min"},
			{At: 600, Stage: "committed", Token: "time_10min"},
			{At: 900, Stage: "urgent", Token: "time_15min"},
		},
		Interactions: []Threshold{
			{At: 3, Stage: "interested", Token: "interactions_3"},
			{At: 7, Stage: "engaged", Token: "interactions_7"},
			{At: 15, Stage: "committed", Token: "interactions_15"},
		},
	}
}

// Validate checks stage names, boundaries and token uniqueness.
func (t Thresholds) Validate() error {
	tokens := make(map[string]bool)
	check := func(kind string, list []Threshold) error {
		last := 0
		for _, th := range list {
			if th.At <= last {
				return fmt.Errorf("%s threshold %d must be positive and ascending", kind, th.At)
			}
			last = th.At
			if _, ok := lookupStage(th.Stage); !ok {
				return fmt.Errorf("%s threshold %d has unknown stage %q", kind, th.At, th.Stage)
			}
			if th.Token == "" {
				continue
			}
			if tokens[th.Token] {
				return fmt.Errorf("duplicate trigger token %s", th.Token)
			}
			tokens[th.Token] = true
		}
		return nil
	}
	if err := check("time", t.TimeSeconds); err != nil {
		return err
	}
	return check("interaction", t.Interactions)
}

// StageFor is the pure stage computation: the later of the time-implied and
// interaction-implied stages for the current counters.
func (t Thresholds) StageFor(timeSpentSeconds, interactions int) Stage {
	stage := StageInitial
	for _, th := range t.TimeSeconds {
		if timeSpentSeconds >= th.At {
			stage = maxStage(stage, ParseStage(th.Stage))
		}
	}
	for _, th := range t.Interactions {
		if interactions >= th.At {
			stage = maxStage(stage, ParseStage(th.Stage))
		}
	}
	return stage
}

// StageFor computes the stage using the default thresholds.
func StageFor(timeSpentSeconds, interactions int) Stage {
	return DefaultThresholds().StageFor(timeSpentSeconds, interactions)
}

func maxStage(a, b Stage) Stage {
	if b > a {
		return b
	}
	return a
}

// Urgency is the messaging urgency for a stage.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Config is the messaging configuration for a stage.
type Config struct {
	Urgency        Urgency `json:"urgency"`
	Message        string  `json:"message"`
	CTA            string  `json:"cta"`
	ShowProgress   bool    `json:"showProgress"`
	ShowPersistent bool    `json:"showPersistent"`
}

var defaultConfig = Config{
	Urgency: UrgencyLow,
	Message: "You're exploring in guest mode. Sign up to keep your budget.",
	CTA:     "Sign Up Free",
}

var stageConfigs = map[Stage]Config{
	StageInitial: defaultConfig,
	StageInterested: {
		Urgency: UrgencyLow,
		Message: "Like what you see? Save your budget with a free account.",
		CTA:     "Save My Progress",
	},
	StageEngaged: {
		Urgency:      UrgencyMedium,
		Message:      "You've set up a lot already. Create an account so you don't lose it.",
		CTA:          "Create Free Account",
		ShowProgress: true,
	},
	StageCommitted: {
		Urgency:        UrgencyHigh,
		Message:        "Your budget is taking shape. Sign up now to keep everything.",
		CTA:            "Keep My Budget",
		ShowProgress:   true,
		ShowPersistent: true,
	},
	StageUrgent: {
		Urgency:        UrgencyHigh,
		Message:        "Guest data is temporary. Create your account before you lose your work.",
		CTA:            "Save Now",
		ShowProgress:   true,
		ShowPersistent: true,
	},
}

// ConfigFor returns the messaging config for a stage, falling back to the default entry.
func ConfigFor(stage Stage) Config {
	if cfg, ok := stageConfigs[stage]; ok {
		return cfg
	}
	return defaultConfig
}
