// Package window holds the pure accept/reject decision logic for the
// harvest time window and the consecutive-stale streak that signals the
// controller to stop scrolling.
package window

import (
	"fmt"
	"time"

	"newsarc/internal/types"
)

// EndLayout is the CLI/config format for the window end, Taipei time.
const EndLayout = "2006-01-02 15:04"

// Spec is the immutable [Start, End] acceptance range. Both bounds are
// inclusive; Start is derived as End minus the window duration.
type Spec struct {
	Start time.Time
	End   time.Time
}

// NewSpec builds a Spec ending at end. A zero end means "now".
func NewSpec(end time.Time, duration time.Duration) Spec {
	if end.IsZero() {
		end = time.Now().In(types.Taipei)
	}
	end = end.In(types.Taipei)
	return Spec{Start: end.Add(-duration), End: end}
}

// ParseEnd parses a window end given as "2006-01-02 15:04" in Taipei time.
func ParseEnd(s string) (time.Time, error) {
	t, err := time.ParseInLocation(EndLayout, s, types.Taipei)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid end time %q (want %q): %w", s, EndLayout, err)
	}
	return t, nil
}

// Contains reports whether t falls inside the window.
func (s Spec) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// SameDay reports whether both bounds fall on one Taipei calendar day.
func (s Spec) SameDay() bool {
	sy, sm, sd := s.Start.In(types.Taipei).Date()
	ey, em, ed := s.End.In(types.Taipei).Date()
	return sy == ey && sm == em && sd == ed
}

// Decision is the outcome of evaluating one record against the window.
type Decision int

const (
	// Accept: the record is inside the window; the stale streak resets.
	Accept Decision = iota

	// RejectFuture: the record is dated after the window end. The page is
	// not chronologically monotonic within a batch, so this neither
	// advances nor resets the streak.
	RejectFuture

	// RejectStale: the record predates the window start; the streak
	// advanced but has not reached the stop threshold.
	RejectStale

	// RejectStaleExceeded: the streak just reached the threshold — the
	// scroll has passed the window boundary for good and the controller
	// should stop.
	RejectStaleExceeded
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case RejectFuture:
		return "reject_future"
	case RejectStale:
		return "reject_stale"
	case RejectStaleExceeded:
		return "reject_stale_exceeded"
	default:
		return "unknown"
	}
}

// Evaluator applies the window to a stream of record timestamps while
// tracking the consecutive-stale streak. It is not safe for concurrent
// use; the scroll loop is single-threaded.
type Evaluator struct {
	spec      Spec
	threshold int
	streak    int
}

// NewEvaluator creates an Evaluator that signals a stop after threshold
// consecutive stale records.
func NewEvaluator(spec Spec, threshold int) *Evaluator {
	return &Evaluator{spec: spec, threshold: threshold}
}

// Evaluate classifies one record timestamp.
//
// A single stale record mixed among fresh ones (pinned or promoted
// content, render timing) must not abort the crawl; only a sustained run
// of stale records means the scroll has left the window behind.
func (e *Evaluator) Evaluate(date time.Time) Decision {
	if date.After(e.spec.End) {
		return RejectFuture
	}
	if !date.Before(e.spec.Start) {
		e.streak = 0
		return Accept
	}
	e.streak++
	if e.streak >= e.threshold {
		return RejectStaleExceeded
	}
	return RejectStale
}

// Streak returns the current consecutive-stale count.
func (e *Evaluator) Streak() int { return e.streak }

// Spec returns the window being evaluated.
func (e *Evaluator) Spec() Spec { return e.spec }
