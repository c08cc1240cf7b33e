package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"newsarc/internal/browse"
	"newsarc/internal/config"
	"newsarc/internal/extract"
	"newsarc/internal/types"
	"newsarc/internal/window"
)

// fakeDriver serves scripted listing snapshots, one per scroll pass. The
// last snapshot repeats once the script is exhausted.
type fakeDriver struct {
	pages   []string
	index   int
	navErr  error
	navTry  int
	scrolls int
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.navTry++
	return d.navErr
}

func (d *fakeDriver) Snapshot(ctx context.Context) (*browse.Snapshot, error) {
	i := d.index
	if i >= len(d.pages) {
		i = len(d.pages) - 1
	}
	d.index++
	return &browse.Snapshot{HTML: d.pages[i], URL: "https://tw.news.yahoo.com/archive", TakenAt: time.Now()}, nil
}

func (d *fakeDriver) ScrollBy(ctx context.Context, fraction float64) error {
	d.scrolls++
	return nil
}

func (d *fakeDriver) Wait(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *fakeDriver) Close() error { return nil }

// fakeFetcher returns a fixed body and counts calls.
type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("<html></html>"), nil
}

// fakeExtractor maps article links to scripted records.
type fakeExtractor struct {
	records map[string]types.ArticleRecord
}

func (e *fakeExtractor) Extract(frag extract.Fragment, detailHTML []byte) (types.ArticleRecord, error) {
	rec, ok := e.records[frag.Link]
	if !ok {
		return types.ArticleRecord{}, &types.ExtractError{Link: frag.Link, Field: "date", Err: types.ErrNoDate}
	}
	return rec, nil
}

// fakeSink collects appended records and can fail on demand.
type fakeSink struct {
	records []types.ArticleRecord
	failOn  int // 1-based append index that fails; 0 = never
}

func (s *fakeSink) Append(rec types.ArticleRecord) error {
	if s.failOn > 0 && len(s.records)+1 == s.failOn {
		return errors.New("disk full")
	}
	s.records = append(s.records, rec)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.HarvestConfig {
	return &config.HarvestConfig{
		ArchiveURL:     "https://tw.news.yahoo.com/archive",
		OldStreakStop:  20,
		ScrollWait:     time.Millisecond,
		ScrollFraction: 0.85,
		NavRetries:     2,
	}
}

func testWindow(t *testing.T) window.Spec {
	t.Helper()
	end, err := window.ParseEnd("2026-02-26 15:30")
	if err != nil {
		t.Fatalf("ParseEnd error: %v", err)
	}
	return window.NewSpec(end, time.Hour)
}

// listingPage renders a minimal archive listing with the given article
// slugs, without card timestamps.
func listingPage(slugs ...string) string {
	page := "<html><body><ul>"
	for _, slug := range slugs {
		page += fmt.Sprintf(`<li><a href="https://tw.news.yahoo.com/%s.html">headline</a></li>`, slug)
	}
	return page + "</ul></body></html>"
}

// recordFor builds a scripted record dated offset from the window end.
func recordFor(slug string, end time.Time, offset time.Duration) (string, types.ArticleRecord) {
	link := "https://tw.news.yahoo.com/" + slug + ".html"
	return link, types.ArticleRecord{
		Link:     link,
		Title:    "headline " + slug,
		Provider: "Yahoo奇摩新聞",
		Date:     end.Add(offset),
	}
}

func TestRunDedupAcrossPasses(t *testing.T) {
	spec := testWindow(t)
	records := map[string]types.ArticleRecord{}
	for _, slug := range []string{"a1", "a2", "a3"} {
		link, rec := recordFor(slug, spec.End, -10*time.Minute)
		records[link] = rec
	}

	// Pass two repeats a1 and a2 and adds a3; pass three adds nothing.
	driver := &fakeDriver{pages: []string{
		listingPage("a1", "a2"),
		listingPage("a1", "a2", "a3"),
		listingPage("a1", "a2", "a3"),
	}}
	fetcher := &fakeFetcher{}
	sink := &fakeSink{}

	ctrl := New(testConfig(), spec, driver, fetcher, &fakeExtractor{records: records}, sink, testLogger())
	state, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if state.StopReason != StopNoNewContent {
		t.Errorf("Expected stop reason %s, got %s", StopNoNewContent, state.StopReason)
	}
	if len(sink.records) != 3 {
		t.Fatalf("Expected 3 emitted records, got %d", len(sink.records))
	}
	if fetcher.calls != 3 {
		t.Errorf("Expected 3 detail fetches (one per unique URL), got %d", fetcher.calls)
	}
	seen := map[string]int{}
	for _, rec := range sink.records {
		seen[rec.Link]++
	}
	for link, n := range seen {
		if n != 1 {
			t.Errorf("Expected %s emitted once, got %d", link, n)
		}
	}
}

func TestRunStopsOnStaleStreak(t *testing.T) {
	spec := testWindow(t)
	cfg := testConfig()
	cfg.OldStreakStop = 3

	records := map[string]types.ArticleRecord{}
	slugs := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		slug := fmt.Sprintf("old%d", i)
		slugs = append(slugs, slug)
		link, rec := recordFor(slug, spec.End, -2*time.Hour)
		records[link] = rec
	}

	driver := &fakeDriver{pages: []string{listingPage(slugs...)}}
	sink := &fakeSink{}

	ctrl := New(cfg, spec, driver, &fakeFetcher{}, &fakeExtractor{records: records}, sink, testLogger())
	state, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if state.StopReason != StopStreak {
		t.Errorf("Expected stop reason %s, got %s", StopStreak, state.StopReason)
	}
	if len(sink.records) != 0 {
		t.Errorf("Expected no emitted records, got %d", len(sink.records))
	}
	// The threshold fires mid-batch but the remaining fragments still run.
	if state.ScrollCount != 1 {
		t.Errorf("Expected a single scroll pass, got %d", state.ScrollCount)
	}
}

func TestRunStreakStopWaitsForBatchEnd(t *testing.T) {
	spec := testWindow(t)
	cfg := testConfig()
	cfg.OldStreakStop = 2

	records := map[string]types.ArticleRecord{}
	staleA, recA := recordFor("old-a", spec.End, -2*time.Hour)
	staleB, recB := recordFor("old-b", spec.End, -2*time.Hour)
	freshC, recC := recordFor("fresh-c", spec.End, -5*time.Minute)
	records[staleA] = recA
	records[staleB] = recB
	records[freshC] = recC

	driver := &fakeDriver{pages: []string{listingPage("old-a", "old-b", "fresh-c")}}
	sink := &fakeSink{}

	ctrl := New(cfg, spec, driver, &fakeFetcher{}, &fakeExtractor{records: records}, sink, testLogger())
	state, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if state.StopReason != StopStreak {
		t.Errorf("Expected stop reason %s, got %s", StopStreak, state.StopReason)
	}
	// The fresh record after the threshold record is still in the batch
	// and must be emitted before the stop takes effect.
	if len(sink.records) != 1 || sink.records[0].Link != freshC {
		t.Errorf("Expected the trailing fresh record to be emitted, got %v", sink.records)
	}
}

func TestRunStopsOnMaxScroll(t *testing.T) {
	spec := testWindow(t)
	cfg := testConfig()
	cfg.MaxScroll = 2

	records := map[string]types.ArticleRecord{}
	var pages []string
	for i := 0; i < 5; i++ {
		slug := fmt.Sprintf("n%d", i)
		link, rec := recordFor(slug, spec.End, -10*time.Minute)
		records[link] = rec
		pages = append(pages, listingPage(slug))
	}

	driver := &fakeDriver{pages: pages}
	sink := &fakeSink{}

	ctrl := New(cfg, spec, driver, &fakeFetcher{}, &fakeExtractor{records: records}, sink, testLogger())
	state, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if state.StopReason != StopMaxScroll {
		t.Errorf("Expected stop reason %s, got %s", StopMaxScroll, state.StopReason)
	}
	if state.ScrollCount != 2 {
		t.Errorf("Expected 2 scroll passes, got %d", state.ScrollCount)
	}
}

func TestRunStopsOnMaxURLs(t *testing.T) {
	spec := testWindow(t)
	cfg := testConfig()
	cfg.MaxURLs = 3

	records := map[string]types.ArticleRecord{}
	slugs := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		slug := fmt.Sprintf("n%d", i)
		slugs = append(slugs, slug)
		link, rec := recordFor(slug, spec.End, -10*time.Minute)
		records[link] = rec
	}

	driver := &fakeDriver{pages: []string{listingPage(slugs...)}}
	sink := &fakeSink{}

	ctrl := New(cfg, spec, driver, &fakeFetcher{}, &fakeExtractor{records: records}, sink, testLogger())
	state, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if state.StopReason != StopMaxURLs {
		t.Errorf("Expected stop reason %s, got %s", StopMaxURLs, state.StopReason)
	}
	if len(sink.records) != 3 {
		t.Errorf("Expected 3 emitted records, got %d", len(sink.records))
	}
}

func TestRunCancellationKeepsPartialResult(t *testing.T) {
	spec := testWindow(t)
	link, rec := recordFor("a1", spec.End, -10*time.Minute)

	cfg := testConfig()
	cfg.ScrollWait = 200 * time.Millisecond

	driver := &fakeDriver{pages: []string{listingPage("a1")}}
	sink := &fakeSink{}
	ctrl := New(cfg, spec, driver, &fakeFetcher{},
		&fakeExtractor{records: map[string]types.ArticleRecord{link: rec}}, sink, testLogger())

	// Cancel during the first scroll wait: the record emitted before the
	// cancellation must survive.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	state, err := ctrl.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if state.StopReason != StopTimeout {
		t.Errorf("Expected stop reason %s, got %s", StopTimeout, state.StopReason)
	}
	if len(sink.records) != 1 {
		t.Errorf("Expected the record emitted before cancellation to survive, got %d", len(sink.records))
	}
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	spec := testWindow(t)
	link, rec := recordFor("a1", spec.End, -10*time.Minute)

	driver := &fakeDriver{pages: []string{listingPage("a1")}}
	sink := &fakeSink{failOn: 1}
	ctrl := New(testConfig(), spec, driver, &fakeFetcher{},
		&fakeExtractor{records: map[string]types.ArticleRecord{link: rec}}, sink, testLogger())

	state, err := ctrl.Run(context.Background())
	if err == nil {
		t.Fatal("Expected fatal error from sink failure")
	}
	var storageErr *types.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("Expected StorageError, got %T", err)
	}
	if state.StopReason != StopStorageFailure {
		t.Errorf("Expected stop reason %s, got %s", StopStorageFailure, state.StopReason)
	}
}

func TestRunNavigateRetries(t *testing.T) {
	spec := testWindow(t)
	driver := &fakeDriver{
		pages:  []string{listingPage()},
		navErr: &types.DriverError{Op: "navigate", Err: errors.New("net::ERR_TIMED_OUT"), Retryable: true},
	}
	ctrl := New(testConfig(), spec, driver, &fakeFetcher{}, &fakeExtractor{}, &fakeSink{}, testLogger())

	state, err := ctrl.Run(context.Background())
	if err == nil {
		t.Fatal("Expected error when navigation never succeeds")
	}
	if state.StopReason != StopDriverFailure {
		t.Errorf("Expected stop reason %s, got %s", StopDriverFailure, state.StopReason)
	}
	// Initial attempt plus two retries.
	if driver.navTry != 3 {
		t.Errorf("Expected 3 navigation attempts, got %d", driver.navTry)
	}
}

func TestRunSkipsStaleCardsWithoutFetching(t *testing.T) {
	spec := testWindow(t)
	staleCard := spec.End.Add(-3 * time.Hour).Format(time.RFC3339)
	page := fmt.Sprintf(`<html><body>
		<div class="card"><a href="https://tw.news.yahoo.com/old1.html">x</a><time datetime="%s"></time></div>
		<div class="card"><a href="https://tw.news.yahoo.com/old2.html">x</a><time datetime="%s"></time></div>
	</body></html>`, staleCard, staleCard)

	driver := &fakeDriver{pages: []string{page, page}}
	fetcher := &fakeFetcher{}
	ctrl := New(testConfig(), spec, driver, fetcher, &fakeExtractor{}, &fakeSink{}, testLogger())

	state, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("Expected stale cards to skip the detail fetch, got %d fetches", fetcher.calls)
	}
	if state.SkippedCount != 0 {
		t.Errorf("Expected pre-filtered cards not to count as skipped, got %d", state.SkippedCount)
	}
}

func TestRunSecondStartRejected(t *testing.T) {
	spec := testWindow(t)
	driver := &fakeDriver{pages: []string{listingPage(), listingPage()}}
	ctrl := New(testConfig(), spec, driver, &fakeFetcher{}, &fakeExtractor{}, &fakeSink{}, testLogger())

	if _, err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("First run error: %v", err)
	}
	if ctrl.GetState() != StateStopped {
		t.Errorf("Expected state stopped, got %s", ctrl.GetState())
	}
	if _, err := ctrl.Run(context.Background()); err == nil {
		t.Error("Expected second Run on the same controller to fail")
	}
}
