package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NEWSARC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsarc")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsarc"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("harvest.archive_url", cfg.Harvest.ArchiveURL)
	v.SetDefault("harvest.window_duration", cfg.Harvest.WindowDuration)
	v.SetDefault("harvest.old_streak_stop", cfg.Harvest.OldStreakStop)
	v.SetDefault("harvest.scroll_wait", cfg.Harvest.ScrollWait)
	v.SetDefault("harvest.scroll_fraction", cfg.Harvest.ScrollFraction)
	v.SetDefault("harvest.max_scroll", cfg.Harvest.MaxScroll)
	v.SetDefault("harvest.max_urls", cfg.Harvest.MaxURLs)
	v.SetDefault("harvest.nav_retries", cfg.Harvest.NavRetries)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.block_heavy", cfg.Browser.BlockHeavy)
	v.SetDefault("browser.navigate_timeout", cfg.Browser.NavigateTimeout)

	v.SetDefault("fetcher.article_timeout", cfg.Fetcher.ArticleTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
