package browse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"newsarc/internal/config"
	"newsarc/internal/types"
)

// RodDriver implements Driver using a headless Chromium via Rod.
type RodDriver struct {
	browser *rod.Browser
	page    *rod.Page
	router  *rod.HijackRouter
	cfg     *config.BrowserConfig
	logger  *slog.Logger
}

// NewRodDriver launches a browser and prepares a single page for the
// archive scroll loop.
func NewRodDriver(cfg *config.BrowserConfig, logger *slog.Logger) (*RodDriver, error) {
	d := &RodDriver{
		cfg:    cfg,
		logger: logger.With("component", "rod_driver"),
	}

	launchURL, err := d.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	d.browser = browser

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	d.page = page

	if cfg.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent})
		if err != nil {
			d.logger.Warn("failed to set user agent", "error", err)
		}
	}

	if cfg.BlockHeavy {
		if err := d.blockHeavyResources(); err != nil {
			d.logger.Warn("failed to install resource blocker", "error", err)
		}
	}

	d.logger.Info("browser driver ready",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"block_heavy", cfg.BlockHeavy,
	)
	return d, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (d *RodDriver) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(d.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	return l.Launch()
}

// blockHeavyResources aborts image/media/font requests so lazy scrolling
// stays cheap. Document, script, and XHR traffic passes through.
func (d *RodDriver) blockHeavyResources() error {
	router := d.page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeMedia,
			proto.NetworkResourceTypeFont:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
	if err != nil {
		return err
	}
	go router.Run()
	d.router = router
	return nil
}

// Navigate implements Driver.
func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	page := d.page.Context(ctx).Timeout(d.cfg.NavigateTimeout)

	if err := page.Navigate(url); err != nil {
		return &types.DriverError{Op: "navigate", Err: err, Retryable: true}
	}
	if err := page.WaitDOMStable(300*time.Millisecond, 0); err != nil {
		// Infinite-scroll pages never fully settle; a stability timeout
		// after DOMContentLoaded is expected.
		d.logger.Warn("page stability timeout, continuing", "url", url, "error", err)
	}
	return nil
}

// Snapshot implements Driver.
func (d *RodDriver) Snapshot(ctx context.Context) (*Snapshot, error) {
	page := d.page.Context(ctx)

	html, err := page.HTML()
	if err != nil {
		return nil, &types.DriverError{Op: "snapshot", Err: err, Retryable: true}
	}
	if html == "" {
		return nil, &types.DriverError{Op: "snapshot", Err: types.ErrNoSnapshot}
	}

	url := ""
	if info, err := page.Info(); err == nil && info != nil {
		url = info.URL
	}

	return &Snapshot{HTML: html, URL: url, TakenAt: time.Now()}, nil
}

// ScrollBy implements Driver.
func (d *RodDriver) ScrollBy(ctx context.Context, fraction float64) error {
	page := d.page.Context(ctx)
	_, err := page.Eval(`(f) => window.scrollBy(0, document.body.scrollHeight * f)`, fraction)
	if err != nil {
		return &types.DriverError{Op: "scroll", Err: err, Retryable: true}
	}
	return nil
}

// Wait implements Driver.
func (d *RodDriver) Wait(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close shuts down the browser and releases resources.
func (d *RodDriver) Close() error {
	if d.router != nil {
		_ = d.router.Stop()
	}
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		return d.browser.Close()
	}
	return nil
}
