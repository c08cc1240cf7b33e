// Package browse wraps the headless browser driving the archive page and
// the plain HTTP client used for article detail pages. The harvest core
// only ever sees immutable snapshots and byte slices from here.
package browse

import (
	"context"
	"time"
)

// Snapshot is an immutable capture of the rendered page at one instant.
// Extraction always works on a Snapshot, never on live browser state.
type Snapshot struct {
	// HTML is the full serialized DOM.
	HTML string

	// URL is the page URL the snapshot was taken from.
	URL string

	// TakenAt is when the snapshot was captured.
	TakenAt time.Time
}

// Driver is the browser-driving collaborator for the scroll loop.
type Driver interface {
	// Navigate loads the given URL and waits for initial render.
	Navigate(ctx context.Context, url string) error

	// Snapshot captures the current rendered DOM.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// ScrollBy scrolls the page down by the given fraction of its
	// current height.
	ScrollBy(ctx context.Context, fraction float64) error

	// Wait sleeps for d to let lazy-loaded content render, returning
	// early with ctx.Err() on cancellation.
	Wait(ctx context.Context, d time.Duration) error

	// Close releases browser resources.
	Close() error
}
