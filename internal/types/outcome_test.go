package types

import (
	"testing"
	"time"
)

func TestNormalizeVerdict(t *testing.T) {
	tests := []struct {
		in   string
		want Verdict
	}{
		{"Pass", VerdictPass},
		{"Fail", VerdictFail},
		{"Maybe", VerdictFail},
		{"pass", VerdictFail},
		{"", VerdictFail},
		{"Something went wrong!", VerdictFail},
	}
	for _, tt := range tests {
		if got := NormalizeVerdict(tt.in); got != tt.want {
			t.Errorf("NormalizeVerdict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutcomeStateTerminal(t *testing.T) {
	if StateIdle.IsTerminal() || StateAttempting.IsTerminal() {
		t.Error("idle and attempting must not be terminal")
	}
	if !StateSucceeded.IsTerminal() || !StateFailed.IsTerminal() {
		t.Error("succeeded and failed must be terminal")
	}
}

func TestOutcomeStatusText(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"idle", IdleOutcome(), "Awaiting Simulation..."},
		{"attempting", AttemptingOutcome("r", 2, 4*time.Second), "Running AI Model..."},
		{"pass", SucceededOutcome("r", 0, VerdictPass), "GOLDEN BATCH (Pass)"},
		{"fail", SucceededOutcome("r", 0, VerdictFail), "BATCH FAILURE (Fail)"},
		{"failed", FailedOutcome("r", 4, "down"), "Connection Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.StatusText(); got != tt.want {
				t.Errorf("StatusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutcomeDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	o := SucceededOutcome("r", 1, VerdictPass)
	if o.Duration() != 0 {
		t.Errorf("Duration() without timestamps = %v, want 0", o.Duration())
	}
	o.StartedAt = start
	o.UpdatedAt = start.Add(2 * time.Second)
	if o.Duration() != 2*time.Second {
		t.Errorf("Duration() = %v, want 2s", o.Duration())
	}
}

func TestParameterSetWithIsolation(t *testing.T) {
	base := DefaultParameterSet()
	updated, err := base.With(ParamPressure, 7.5)
	if err != nil {
		t.Fatalf("With() error: %v", err)
	}
	if updated.Pressure != 7.5 {
		t.Errorf("Pressure = %v, want 7.5", updated.Pressure)
	}
	if updated.Temperature != base.Temperature || updated.Speed != base.Speed {
		t.Errorf("other fields changed: %+v", updated)
	}
	if base.Pressure != DefaultPressure {
		t.Error("With must not mutate the receiver")
	}
	if _, err := base.With("humidity", 1); err == nil {
		t.Error("With() should reject unknown parameters")
	}
}

func TestDefaultBounds(t *testing.T) {
	bounds := DefaultBounds()
	if len(bounds) != len(ParameterNames) {
		t.Fatalf("got %d bounds, want %d", len(bounds), len(ParameterNames))
	}
	for i, b := range bounds {
		if b.Name != ParameterNames[i] {
			t.Errorf("bounds[%d].Name = %q, want %q", i, b.Name, ParameterNames[i])
		}
		if !b.Contains(b.Min) || !b.Contains(b.Max) {
			t.Errorf("%s bounds should be inclusive", b.Name)
		}
	}
	defaults := DefaultParameterSet()
	for _, b := range bounds {
		v, _ := defaults.Get(b.Name)
		if !b.Contains(v) {
			t.Errorf("default %s=%v outside advisory range", b.Name, v)
		}
	}
}
