package engagement

import (
	"encoding/json"
	"testing"
)

func TestStageFor(t *testing.T) {
	tests := []struct {
		name         string
		timeSpent    int
		interactions int
		want         Stage
	}{
		{"fresh session", 0, 0, StageInitial},
		{"just before two minutes", 119, 2, StageInitial},
		{"two minutes", 120, 0, StageInterested},
		{"three interactions", 10, 3, StageInterested},
		{"five minutes", 300, 0, StageEngaged},
		{"seven interactions", 0, 7, StageEngaged},
		{"time wins over interactions", 600, 3, StageCommitted},
		{"interactions win over time", 130, 15, StageCommitted},
		{"fifteen minutes", 900, 0, StageUrgent},
		{"interactions never reach urgent", 0, 500, StageCommitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StageFor(tt.timeSpent, tt.interactions); got != tt.want {
				t.Errorf("StageFor(%d, %d) = %s, want %s", tt.timeSpent, tt.interactions, got, tt.want)
			}
		})
	}
}

func TestConfigFor(t *testing.T) {
	initial := ConfigFor(StageInitial)
	if initial.Urgency != UrgencyLow || initial.ShowPersistent {
		t.Errorf("initial config should be low urgency and not persistent, got %+v", initial)
	}

	urgent := ConfigFor(StageUrgent)
	if urgent.Urgency != UrgencyHigh || !urgent.ShowPersistent {
		t.Errorf("urgent config should be high urgency and persistent, got %+v", urgent)
	}

	if got := ConfigFor(Stage(42)); got != defaultConfig {
		t.Errorf("unknown stage should fall back to default config, got %+v", got)
	}
}

func TestStage_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Stage Stage `json:"stage"`
	}{StageCommitted})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"stage":"committed"}` {
		t.Errorf("unexpected encoding %s", b)
	}

	var decoded struct {
		Stage Stage `json:"stage"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Stage != StageCommitted {
		t.Errorf("decoded stage = %s, want committed", decoded.Stage)
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}

	tests := []struct {
		name string
		th   Thresholds
	}{
		{"unknown stage", Thresholds{TimeSeconds: []Threshold{{At: 10, Stage: "bored"}}}},
		{"descending", Thresholds{TimeSeconds: []Threshold{{At: 10, Stage: "engaged"}, {At: 5, Stage: "urgent"}}}},
		{"zero boundary", Thresholds{Interactions: []Threshold{{At: 0, Stage: "engaged"}}}},
		{"duplicate token", Thresholds{
			TimeSeconds:  []Threshold{{At: 10, Stage: "engaged", Token: "t"}},
			Interactions: []Threshold{{At: 3, Stage: "engaged", Token: "t"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.th.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
