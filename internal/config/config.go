package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for newsarc.
type Config struct {
	Harvest HarvestConfig `mapstructure:"harvest" yaml:"harvest"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// HarvestConfig controls the scroll-and-stop controller.
type HarvestConfig struct {
	ArchiveURL     string        `mapstructure:"archive_url"     yaml:"archive_url"`
	End            string        `mapstructure:"end"             yaml:"end"` // "2006-01-02 15:04" Taipei; empty = now
	WindowDuration time.Duration `mapstructure:"window_duration" yaml:"window_duration"`
	OldStreakStop  int           `mapstructure:"old_streak_stop" yaml:"old_streak_stop"`
	ScrollWait     time.Duration `mapstructure:"scroll_wait"     yaml:"scroll_wait"`
	ScrollFraction float64       `mapstructure:"scroll_fraction" yaml:"scroll_fraction"`
	MaxScroll      int           `mapstructure:"max_scroll"      yaml:"max_scroll"` // 0 = unbounded
	MaxURLs        int           `mapstructure:"max_urls"        yaml:"max_urls"`   // 0 = unbounded
	NavRetries     int           `mapstructure:"nav_retries"     yaml:"nav_retries"`
}

// BrowserConfig controls the headless browser driver.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"         yaml:"headless"`
	Stealth         bool          `mapstructure:"stealth"          yaml:"stealth"`
	BlockHeavy      bool          `mapstructure:"block_heavy"      yaml:"block_heavy"` // abort image/media/font requests
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout" yaml:"navigate_timeout"`
	UserAgent       string        `mapstructure:"user_agent"       yaml:"user_agent"`
}

// FetcherConfig controls the HTTP fetcher used for article detail pages.
type FetcherConfig struct {
	ArticleTimeout  time.Duration `mapstructure:"article_timeout"   yaml:"article_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
}

// StorageConfig controls the output sink.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"`        // csv, mongo, multi
	OutputPath      string `mapstructure:"output_path"      yaml:"output_path"` // empty = derive from window
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Harvest: HarvestConfig{
			ArchiveURL:     "https://tw.news.yahoo.com/archive",
			WindowDuration: time.Hour,
			OldStreakStop:  20,
			ScrollWait:     350 * time.Millisecond,
			ScrollFraction: 0.85,
			NavRetries:     2,
		},
		Browser: BrowserConfig{
			Headless:        true,
			Stealth:         true,
			BlockHeavy:      true,
			NavigateTimeout: 45 * time.Second,
		},
		Fetcher: FetcherConfig{
			ArticleTimeout:  20 * time.Second,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
		},
		Storage: StorageConfig{
			Type:            "csv",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "newsarc",
			MongoCollection: "articles",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
