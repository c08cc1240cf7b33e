package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsarc/internal/browse"
	"newsarc/internal/config"
	"newsarc/internal/extract"
	"newsarc/internal/harvest"
	"newsarc/internal/output"
	"newsarc/internal/window"
)

var (
	cfgFile       string
	verbose       bool
	endStr        string
	outputPath    string
	oldStreakStop int
	scrollWait    time.Duration
	maxScroll     int
	maxURLs       int
	storageType   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsarc",
		Short: "newsarc — Yahoo Taiwan news archive harvester",
		Long: `newsarc harvests article metadata from the continuously-scrolling
Yahoo Taiwan news archive, restricted to a one-hour window, and writes a
deduplicated CSV sorted by publish date.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(harvestCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// harvestCmd creates the "harvest" subcommand.
func harvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run one archive harvest",
		Long:  "Scroll the archive page, collect articles inside the time window, and write the result CSV.",
		RunE:  runHarvest,
	}

	cmd.Flags().StringVar(&endStr, "end", "", `window end as "2006-01-02 15:04" Taipei time (default: now)`)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output CSV path (default: derived from date range)")
	cmd.Flags().IntVar(&oldStreakStop, "old-streak-stop", 0, "consecutive stale articles before stopping (default 20)")
	cmd.Flags().DurationVar(&scrollWait, "scroll-wait", 0, "wait after each scroll for lazy content (default 350ms)")
	cmd.Flags().IntVar(&maxScroll, "max-scroll", 0, "maximum scroll passes (0 = unbounded)")
	cmd.Flags().IntVar(&maxURLs, "max-urls", 0, "maximum unique article URLs to process (0 = unbounded)")
	cmd.Flags().StringVarP(&storageType, "storage", "s", "", "storage backend: csv, mongo, multi")

	return cmd
}

// runHarvest executes the harvest command.
func runHarvest(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var end time.Time
	if cfg.Harvest.End != "" {
		end, err = window.ParseEnd(cfg.Harvest.End)
		if err != nil {
			return err
		}
	}
	spec := window.NewSpec(end, cfg.Harvest.WindowDuration)

	driver, err := browse.NewRodDriver(&cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("create browser driver: %w", err)
	}
	defer driver.Close()

	fetcher, err := browse.NewDetailFetcher(&cfg.Fetcher, logger)
	if err != nil {
		return fmt.Errorf("create detail fetcher: %w", err)
	}
	defer fetcher.Close()

	sink, csvSink, err := buildSink(cfg, spec, logger)
	if err != nil {
		return fmt.Errorf("create output sink: %w", err)
	}

	ctrl := harvest.New(
		&cfg.Harvest,
		spec,
		driver,
		fetcher,
		extract.NewExtractor(logger),
		sink,
		logger,
	)

	// An external stop signal is handled like timeout expiry: finish the
	// current step, finalize, and exit with the partial result.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, runErr := ctrl.Run(ctx)

	// Finalization always runs: a fatal run error must never discard
	// records accepted before it.
	if err := sink.Close(); err != nil {
		logger.Error("sink finalize failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	fmt.Printf("\nHarvest finished: %s\n", state.Summary())
	if csvSink != nil && csvSink.Path() != "" {
		fmt.Printf("Output: %s\n", csvSink.Path())
	}

	if runErr != nil {
		return fmt.Errorf("harvest ended on fatal error (partial result written): %w", runErr)
	}
	return nil
}

// buildSink constructs the configured output backend. The *CSVSink is
// returned separately so the destination path can be reported.
func buildSink(cfg *config.Config, spec window.Spec, logger *slog.Logger) (output.RecordSink, *output.CSVSink, error) {
	dir, name := ".", ""
	if cfg.Storage.OutputPath != "" {
		dir, name = filepath.Split(cfg.Storage.OutputPath)
		if dir == "" {
			dir = "."
		}
	}

	newCSV := func() (*output.CSVSink, error) {
		return output.NewCSVSink(dir, name, spec, logger)
	}

	switch cfg.Storage.Type {
	case "csv":
		s, err := newCSV()
		return s, s, err
	case "mongo":
		s, err := output.NewMongoSink(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
		return s, nil, err
	case "multi":
		csvSink, err := newCSV()
		if err != nil {
			return nil, nil, err
		}
		mongoSink, err := output.NewMongoSink(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
		if err != nil {
			return nil, nil, err
		}
		return output.NewMultiSink([]output.RecordSink{csvSink, mongoSink}, logger), csvSink, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newsarc %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Harvest:\n")
			fmt.Printf("  Archive URL:      %s\n", cfg.Harvest.ArchiveURL)
			fmt.Printf("  Window Duration:  %s\n", cfg.Harvest.WindowDuration)
			fmt.Printf("  Old Streak Stop:  %d\n", cfg.Harvest.OldStreakStop)
			fmt.Printf("  Scroll Wait:      %s\n", cfg.Harvest.ScrollWait)
			fmt.Printf("  Scroll Fraction:  %v\n", cfg.Harvest.ScrollFraction)
			fmt.Printf("  Max Scroll:       %d (0 = unbounded)\n", cfg.Harvest.MaxScroll)
			fmt.Printf("  Max URLs:         %d (0 = unbounded)\n", cfg.Harvest.MaxURLs)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:         %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:          %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Block Heavy:      %v\n", cfg.Browser.BlockHeavy)
			fmt.Printf("  Navigate Timeout: %s\n", cfg.Browser.NavigateTimeout)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Article Timeout:  %s\n", cfg.Fetcher.ArticleTimeout)
			fmt.Printf("  Max Body Size:    %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:             %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:      %s\n", cfg.Storage.OutputPath)
			return nil
		},
	}
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if endStr != "" {
		cfg.Harvest.End = endStr
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if oldStreakStop > 0 {
		cfg.Harvest.OldStreakStop = oldStreakStop
	}
	if scrollWait > 0 {
		cfg.Harvest.ScrollWait = scrollWait
	}
	if maxScroll > 0 {
		cfg.Harvest.MaxScroll = maxScroll
	}
	if maxURLs > 0 {
		cfg.Harvest.MaxURLs = maxURLs
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
}
