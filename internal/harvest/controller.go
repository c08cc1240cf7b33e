// Package harvest owns the scroll-and-stop loop: it drives the browser,
// feeds fragments through extraction and window evaluation, and decides
// when the archive has nothing more to give.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"newsarc/internal/browse"
	"newsarc/internal/config"
	"newsarc/internal/extract"
	"newsarc/internal/types"
	"newsarc/internal/window"
)

// HardTimeout is the wall-clock safety limit for one run. It always wins
// over every other stop condition and is checked before each blocking
// driver call.
const HardTimeout = 600 * time.Second

// State represents the controller's lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason records why a run terminated.
type StopReason string

const (
	StopTimeout        StopReason = "timeout"
	StopStreak         StopReason = "streak-exceeded"
	StopMaxScroll      StopReason = "max-scroll-reached"
	StopMaxURLs        StopReason = "max-urls-reached"
	StopNoNewContent   StopReason = "no-new-content"
	StopDriverFailure  StopReason = "driver-failure"
	StopStorageFailure StopReason = "storage-failure"
)

// RunState holds the mutable counters of one run. It is owned by the
// controller, mutated once per scroll iteration, and frozen when a stop
// condition fires.
type RunState struct {
	ScrollCount  int
	EmittedCount int
	SkippedCount int
	StartedAt    time.Time
	FinishedAt   time.Time
	StopReason   StopReason
}

// Elapsed returns the wall-clock duration of the run.
func (r *RunState) Elapsed() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}

// Summary renders the human-readable run summary.
func (r *RunState) Summary() string {
	return fmt.Sprintf("reason=%s start=%s end=%s elapsed=%.2fs items=%d",
		r.StopReason,
		r.StartedAt.In(types.Taipei).Format("2006-01-02 15:04"),
		r.FinishedAt.In(types.Taipei).Format("2006-01-02 15:04"),
		r.Elapsed().Seconds(),
		r.EmittedCount,
	)
}

// DetailFetcher retrieves an article detail page for fallback extraction.
type DetailFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns a fragment plus its detail page into a record.
type Extractor interface {
	Extract(frag extract.Fragment, detailHTML []byte) (types.ArticleRecord, error)
}

// RecordSink receives accepted records as they are emitted.
type RecordSink interface {
	Append(rec types.ArticleRecord) error
}

// Controller orchestrates the scroll loop. One Controller runs one
// harvest; all loop state is confined to the single Run goroutine.
type Controller struct {
	cfg       *config.HarvestConfig
	driver    browse.Driver
	fetcher   DetailFetcher
	extractor Extractor
	sink      RecordSink
	eval      *window.Evaluator
	ledger    *Ledger
	logger    *slog.Logger

	state atomic.Int32
	run   RunState
}

// New creates a Controller for one run over the given window.
func New(
	cfg *config.HarvestConfig,
	spec window.Spec,
	driver browse.Driver,
	fetcher DetailFetcher,
	extractor Extractor,
	sink RecordSink,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		cfg:       cfg,
		driver:    driver,
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		eval:      window.NewEvaluator(spec, cfg.OldStreakStop),
		ledger:    NewLedger(4096),
		logger:    logger.With("component", "controller"),
	}
}

// GetState returns the current lifecycle state.
func (c *Controller) GetState() State {
	return State(c.state.Load())
}

// Run executes the harvest until a stop condition fires. It returns the
// frozen RunState in every case; a non-nil error means the run ended on a
// fatal driver or storage failure, with whatever was emitted so far
// already streamed to the sink.
func (c *Controller) Run(ctx context.Context) (*RunState, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("controller is in state %s, cannot start", c.GetState())
	}

	c.run.StartedAt = time.Now()

	// External cancellation is treated identically to timeout expiry.
	runCtx, cancel := context.WithTimeout(ctx, HardTimeout)
	defer cancel()

	spec := c.eval.Spec()
	c.logger.Info("harvest starting",
		"archive", c.cfg.ArchiveURL,
		"window_start", spec.Start.Format(time.RFC3339),
		"window_end", spec.End.Format(time.RFC3339),
		"old_streak_stop", c.cfg.OldStreakStop,
	)

	if err := c.navigate(runCtx); err != nil {
		return c.finish(StopDriverFailure), err
	}

	reason, err := c.loop(runCtx)
	return c.finish(reason), err
}

// navigate loads the archive page, retrying transient driver errors.
func (c *Controller) navigate(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= c.cfg.NavRetries; attempt++ {
		err = c.driver.Navigate(ctx, c.cfg.ArchiveURL)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		c.logger.Warn("archive navigation failed", "attempt", attempt, "error", err)
	}
	return err
}

// loop is the per-iteration scroll body. It returns the stop reason and,
// for fatal terminations, the underlying error.
func (c *Controller) loop(ctx context.Context) (StopReason, error) {
	for {
		// The hard timeout is the only preemptive cancellation point and
		// overrides all other in-progress decisions.
		if ctx.Err() != nil {
			return StopTimeout, nil
		}

		if c.cfg.MaxScroll > 0 && c.run.ScrollCount >= c.cfg.MaxScroll {
			c.logger.Info("stop: hit max_scroll", "max_scroll", c.cfg.MaxScroll)
			return StopMaxScroll, nil
		}
		c.run.ScrollCount++

		snap, err := c.driver.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return StopTimeout, nil
			}
			return StopDriverFailure, err
		}

		frags, err := extract.ListFragments(snap)
		if err != nil {
			c.logger.Warn("snapshot parse failed, skipping pass", "error", err)
		}

		added, reason, err := c.processBatch(ctx, frags)
		if err != nil {
			return reason, err
		}
		c.logger.Info("scroll pass",
			"scroll", c.run.ScrollCount,
			"added_urls", added,
			"total_urls", c.ledger.Count(),
			"emitted", c.run.EmittedCount,
			"streak", c.eval.Streak(),
		)
		if reason != "" {
			return reason, nil
		}

		// A scroll that surfaces nothing unseen means the page has no
		// more content to render.
		if added == 0 && c.run.ScrollCount > 1 {
			c.logger.Info("stop: no new content after scroll")
			return StopNoNewContent, nil
		}

		if err := c.driver.ScrollBy(ctx, c.cfg.ScrollFraction); err != nil {
			if ctx.Err() != nil {
				return StopTimeout, nil
			}
			return StopDriverFailure, err
		}
		if err := c.driver.Wait(ctx, c.cfg.ScrollWait); err != nil {
			return StopTimeout, nil
		}
	}
}

// processBatch runs every previously-unseen fragment of one snapshot
// through extraction and evaluation. A streak-exceeded signal requests
// the stop only after the batch is finished, so a partially-processed
// scroll is never truncated.
func (c *Controller) processBatch(ctx context.Context, frags []extract.Fragment) (added int, reason StopReason, fatal error) {
	for _, frag := range frags {
		if c.ledger.Seen(frag.Link) {
			continue
		}
		c.ledger.Mark(frag.Link)
		added++

		stop, err := c.processFragment(ctx, frag)
		if err != nil {
			return added, stop, err
		}
		if stop == StopTimeout {
			// The hard timeout preempts the batch; everything else waits
			// for the batch to finish.
			return added, StopTimeout, nil
		}
		if stop != "" && reason == "" {
			reason = stop
		}

		if c.cfg.MaxURLs > 0 && c.ledger.Count() >= c.cfg.MaxURLs {
			c.logger.Info("stop: hit max_urls", "max_urls", c.cfg.MaxURLs)
			if reason == "" {
				reason = StopMaxURLs
			}
			return added, reason, nil
		}
	}
	return added, reason, nil
}

// processFragment handles a single unseen fragment end to end. A non-empty
// reason requests a stop once the current batch completes; a non-nil
// error aborts the run immediately.
func (c *Controller) processFragment(ctx context.Context, frag extract.Fragment) (StopReason, error) {
	// Cheap pre-filter on the listing card timestamp: future and stale
	// cards are classified without a detail fetch.
	if cardDate, ok := extract.ParseTime(frag.CardTime); ok {
		switch c.eval.Evaluate(cardDate) {
		case window.RejectFuture, window.RejectStale:
			return "", nil
		case window.RejectStaleExceeded:
			c.logger.Info("stop: stale streak threshold reached on card",
				"streak", c.eval.Streak(), "threshold", c.cfg.OldStreakStop)
			return StopStreak, nil
		}
		// Accept on the card still requires the detail-page date to make
		// the final call below.
	}

	detail, err := c.fetcher.Fetch(ctx, frag.Link)
	if err != nil {
		if ctx.Err() != nil {
			return StopTimeout, nil
		}
		c.logger.Debug("detail fetch failed, fragment skipped", "url", frag.Link, "error", err)
		c.run.SkippedCount++
		return "", nil
	}

	rec, err := c.extractor.Extract(frag, detail)
	if err != nil {
		// Unparseable fragments are skipped without touching the streak.
		c.logger.Debug("extraction failed, fragment skipped", "url", frag.Link, "error", err)
		c.run.SkippedCount++
		return "", nil
	}

	switch c.eval.Evaluate(rec.Date) {
	case window.Accept:
		if err := c.sink.Append(rec); err != nil {
			c.logger.Error("sink append failed", "url", rec.Link, "error", err)
			return StopStorageFailure, &types.StorageError{Backend: "sink", Err: err}
		}
		c.run.EmittedCount++
	case window.RejectStaleExceeded:
		c.logger.Info("stop: stale streak threshold reached",
			"streak", c.eval.Streak(), "threshold", c.cfg.OldStreakStop)
		return StopStreak, nil
	}
	return "", nil
}

// finish freezes the run state and emits the summary.
func (c *Controller) finish(reason StopReason) *RunState {
	c.state.Store(int32(StateStopping))
	c.run.StopReason = reason
	c.run.FinishedAt = time.Now()
	c.state.Store(int32(StateStopped))

	c.logger.Info("harvest finished", "summary", c.run.Summary())
	return &c.run
}
