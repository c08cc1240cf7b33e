package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Harvest.ArchiveURL); err != nil {
		return fmt.Errorf("harvest.archive_url: %w", err)
	}
	if cfg.Harvest.WindowDuration <= 0 {
		return fmt.Errorf("harvest.window_duration must be > 0")
	}
	if cfg.Harvest.OldStreakStop < 1 {
		return fmt.Errorf("harvest.old_streak_stop must be >= 1, got %d", cfg.Harvest.OldStreakStop)
	}
	if cfg.Harvest.ScrollWait < 0 {
		return fmt.Errorf("harvest.scroll_wait must be >= 0")
	}
	if cfg.Harvest.ScrollFraction <= 0 || cfg.Harvest.ScrollFraction > 1 {
		return fmt.Errorf("harvest.scroll_fraction must be in (0, 1], got %v", cfg.Harvest.ScrollFraction)
	}
	if cfg.Harvest.MaxScroll < 0 {
		return fmt.Errorf("harvest.max_scroll must be >= 0 (0 = unbounded), got %d", cfg.Harvest.MaxScroll)
	}
	if cfg.Harvest.MaxURLs < 0 {
		return fmt.Errorf("harvest.max_urls must be >= 0 (0 = unbounded), got %d", cfg.Harvest.MaxURLs)
	}
	if cfg.Harvest.NavRetries < 0 {
		return fmt.Errorf("harvest.nav_retries must be >= 0, got %d", cfg.Harvest.NavRetries)
	}

	if cfg.Browser.NavigateTimeout <= 0 {
		return fmt.Errorf("browser.navigate_timeout must be > 0")
	}

	if cfg.Fetcher.ArticleTimeout <= 0 {
		return fmt.Errorf("fetcher.article_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	validStorageTypes := map[string]bool{
		"csv": true, "mongo": true, "multi": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, mongo, multi)", cfg.Storage.Type)
	}
	if cfg.Storage.Type != "csv" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required for storage.type %q", cfg.Storage.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a crawl target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
