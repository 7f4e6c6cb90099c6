package models

import (
	"testing"
	"time"
)

func TestInteractionID_Deterministic(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)

	a := InteractionID(ts, "Solve x^2+5x+6=0")
	b := InteractionID(ts, "Solve x^2+5x+6=0")

	if a != b {
		t.Errorf("same (timestamp, input) produced different IDs: %q vs %q", a, b)
	}
}

func TestInteractionID_Length(t *testing.T) {
	id := InteractionID(time.Now(), "any input")
	if len(id) != 16 {
		t.Errorf("InteractionID length = %d, want 16", len(id))
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Errorf("InteractionID contains non-hex character %q", c)
		}
	}
}

func TestInteractionID_DistinctInputs(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	if InteractionID(ts, "problem a") == InteractionID(ts, "problem b") {
		t.Error("different inputs produced the same ID")
	}
	if InteractionID(ts, "problem a") == InteractionID(ts.Add(time.Nanosecond), "problem a") {
		t.Error("different timestamps produced the same ID")
	}
}
