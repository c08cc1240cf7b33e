package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}

	if cfg.Harvest.WindowDuration != time.Hour {
		t.Errorf("Expected 1h window, got %s", cfg.Harvest.WindowDuration)
	}
	if cfg.Harvest.OldStreakStop != 20 {
		t.Errorf("Expected old_streak_stop 20, got %d", cfg.Harvest.OldStreakStop)
	}
	if cfg.Harvest.ArchiveURL != "https://tw.news.yahoo.com/archive" {
		t.Errorf("Unexpected archive URL: %s", cfg.Harvest.ArchiveURL)
	}
	if cfg.Harvest.MaxScroll != 0 || cfg.Harvest.MaxURLs != 0 {
		t.Error("Expected scroll and URL limits unbounded by default")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad archive url", func(c *Config) { c.Harvest.ArchiveURL = "ftp://example.com" }},
		{"zero window", func(c *Config) { c.Harvest.WindowDuration = 0 }},
		{"zero streak stop", func(c *Config) { c.Harvest.OldStreakStop = 0 }},
		{"scroll fraction over 1", func(c *Config) { c.Harvest.ScrollFraction = 1.5 }},
		{"scroll fraction zero", func(c *Config) { c.Harvest.ScrollFraction = 0 }},
		{"negative max scroll", func(c *Config) { c.Harvest.MaxScroll = -1 }},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "sqlite" }},
		{"mongo without uri", func(c *Config) { c.Storage.Type = "mongo"; c.Storage.MongoURI = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://tw.news.yahoo.com/archive",
		"http://localhost:8080/archive",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Errorf("Expected %q valid, got: %v", u, err)
		}
	}

	invalid := []string{
		"ftp://example.com",
		"not a url",
		"https://",
	}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Errorf("Expected %q invalid", u)
		}
	}
}

func TestLoadWithoutConfigFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected missing config file to fall back to defaults, got: %v", err)
	}
	if cfg.Harvest.OldStreakStop != 20 {
		t.Errorf("Expected default old_streak_stop, got %d", cfg.Harvest.OldStreakStop)
	}
}
