package observation

import (
	"math/rand"
	"testing"
)

func TestParseThreadSeverity(t *testing.T) {
	for _, value := range []string{"info", "low", "medium", "high"} {
		severity, err := ParseThreadSeverity(value)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		if string(severity) != value {
			t.Fatalf("parse %q: got %q", value, severity)
		}
	}

	if _, err := ParseThreadSeverity("critical"); err == nil {
		t.Fatal("expected error for activity-scale value on thread scale")
	}
	if _, err := ParseThreadSeverity(""); err == nil {
		t.Fatal("expected error for empty severity")
	}
}

func TestMapSeverityFixedArms(t *testing.T) {
	cases := []struct {
		in   ThreadSeverity
		draw float64
		want ActivitySeverity
	}{
		{ThreadSeverityHigh, 0.0, ActivitySeverityCritical},
		{ThreadSeverityHigh, 0.99, ActivitySeverityCritical},
		{ThreadSeverityMedium, 0.0, ActivitySeverityWarning},
		{ThreadSeverityMedium, 0.99, ActivitySeverityWarning},
		{ThreadSeverityInfo, 0.0, ActivitySeverityInfo},
		{ThreadSeverityInfo, 0.99, ActivitySeverityInfo},
		{ThreadSeverityLow, 0.71, ActivitySeverityWarning},
		{ThreadSeverityLow, 0.7, ActivitySeverityInfo},
		{ThreadSeverityLow, 0.2, ActivitySeverityInfo},
	}

	for _, tc := range cases {
		if got := MapSeverity(tc.in, tc.draw); got != tc.want {
			t.Fatalf("MapSeverity(%s, %v) = %s, want %s", tc.in, tc.draw, got, tc.want)
		}
	}
}

func TestMapSeverityLowWarningRateConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	const trials = 100000
	warnings := 0
	for i := 0; i < trials; i++ {
		if MapSeverity(ThreadSeverityLow, rng.Float64()) == ActivitySeverityWarning {
			warnings++
		}
	}

	rate := float64(warnings) / float64(trials)
	if rate < 0.28 || rate > 0.32 {
		t.Fatalf("low->warning rate = %v, want near 0.30", rate)
	}
}
