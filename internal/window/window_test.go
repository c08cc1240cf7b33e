package window

import (
	"testing"
	"time"

	"newsarc/internal/types"
)

func mustEnd(t *testing.T, s string) time.Time {
	t.Helper()
	end, err := ParseEnd(s)
	if err != nil {
		t.Fatalf("ParseEnd(%q) error: %v", s, err)
	}
	return end
}

func TestParseEnd(t *testing.T) {
	end := mustEnd(t, "2026-02-26 15:30")
	if end.Hour() != 15 || end.Minute() != 30 {
		t.Errorf("Expected 15:30, got %02d:%02d", end.Hour(), end.Minute())
	}
	if end.Location() != types.Taipei {
		t.Errorf("Expected Taipei location, got %v", end.Location())
	}

	if _, err := ParseEnd("26/02/2026 15:30"); err == nil {
		t.Error("Expected error for wrong layout")
	}
}

func TestNewSpecBounds(t *testing.T) {
	end := mustEnd(t, "2026-02-26 15:30")
	spec := NewSpec(end, time.Hour)

	if !spec.End.Equal(end) {
		t.Errorf("Expected end %v, got %v", end, spec.End)
	}
	if !spec.Start.Equal(end.Add(-time.Hour)) {
		t.Errorf("Expected start one hour before end, got %v", spec.Start)
	}
}

func TestNewSpecZeroEndUsesNow(t *testing.T) {
	before := time.Now()
	spec := NewSpec(time.Time{}, time.Hour)
	after := time.Now()

	if spec.End.Before(before) || spec.End.After(after) {
		t.Errorf("Expected end near now, got %v", spec.End)
	}
}

func TestSpecContains(t *testing.T) {
	end := mustEnd(t, "2026-02-26 15:30")
	spec := NewSpec(end, time.Hour)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"inside", end.Add(-30 * time.Minute), true},
		{"exactly start", spec.Start, true},
		{"exactly end", spec.End, true},
		{"one second before start", spec.Start.Add(-time.Second), false},
		{"one second after end", spec.End.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spec.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestSpecSameDay(t *testing.T) {
	sameDay := NewSpec(mustEnd(t, "2026-02-26 15:30"), time.Hour)
	if !sameDay.SameDay() {
		t.Error("Expected 14:30~15:30 to be same day")
	}

	crossMidnight := NewSpec(mustEnd(t, "2026-02-27 00:20"), 30*time.Minute)
	if crossMidnight.SameDay() {
		t.Error("Expected 23:50~00:20 to span two days")
	}
}

func TestEvaluateAcceptResetsStreak(t *testing.T) {
	end := mustEnd(t, "2026-02-26 15:30")
	eval := NewEvaluator(NewSpec(end, time.Hour), 3)

	stale := end.Add(-2 * time.Hour)
	fresh := end.Add(-10 * time.Minute)

	if d := eval.Evaluate(stale); d != RejectStale {
		t.Errorf("Expected reject_stale, got %s", d)
	}
	if d := eval.Evaluate(stale); d != RejectStale {
		t.Errorf("Expected reject_stale, got %s", d)
	}
	if eval.Streak() != 2 {
		t.Errorf("Expected streak 2, got %d", eval.Streak())
	}

	// A fresh record resets the streak even after two stale ones.
	if d := eval.Evaluate(fresh); d != Accept {
		t.Errorf("Expected accept, got %s", d)
	}
	if eval.Streak() != 0 {
		t.Errorf("Expected streak reset to 0, got %d", eval.Streak())
	}
}

func TestEvaluateStreakThreshold(t *testing.T) {
	end := mustEnd(t, "2026-02-26 15:30")
	eval := NewEvaluator(NewSpec(end, time.Hour), 20)

	stale := end.Add(-3 * time.Hour)
	for i := 0; i < 19; i++ {
		if d := eval.Evaluate(stale); d != RejectStale {
			t.Fatalf("Record %d: expected reject_stale, got %s", i+1, d)
		}
	}
	if d := eval.Evaluate(stale); d != RejectStaleExceeded {
		t.Errorf("Record 20: expected reject_stale_exceeded, got %s", d)
	}
}

func TestEvaluateFutureIsStreakNeutral(t *testing.T) {
	end := mustEnd(t, "2026-02-26 15:30")
	eval := NewEvaluator(NewSpec(end, time.Hour), 3)

	stale := end.Add(-2 * time.Hour)
	future := end.Add(5 * time.Minute)

	eval.Evaluate(stale)
	eval.Evaluate(stale)

	if d := eval.Evaluate(future); d != RejectFuture {
		t.Errorf("Expected reject_future, got %s", d)
	}
	if eval.Streak() != 2 {
		t.Errorf("Expected future record to leave streak at 2, got %d", eval.Streak())
	}

	// The in-progress streak still completes.
	if d := eval.Evaluate(stale); d != RejectStaleExceeded {
		t.Errorf("Expected reject_stale_exceeded, got %s", d)
	}
}

func TestEvaluateBoundsInclusive(t *testing.T) {
	end := mustEnd(t, "2026-02-26 15:30")
	spec := NewSpec(end, time.Hour)
	eval := NewEvaluator(spec, 20)

	if d := eval.Evaluate(spec.Start); d != Accept {
		t.Errorf("Expected start bound accepted, got %s", d)
	}
	if d := eval.Evaluate(spec.End); d != Accept {
		t.Errorf("Expected end bound accepted, got %s", d)
	}
}

func TestDecisionString(t *testing.T) {
	tests := []struct {
		d    Decision
		want string
	}{
		{Accept, "accept"},
		{RejectFuture, "reject_future"},
		{RejectStale, "reject_stale"},
		{RejectStaleExceeded, "reject_stale_exceeded"},
		{Decision(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("Decision(%d).String() = %q, want %q", tt.d, got, tt.want)
		}
	}
}
