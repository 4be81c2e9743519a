// Package common holds the wiring shared by the CLI commands.
package common

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/badge"
	"github.com/agileteam/vpbadge/pkg/db"
	"github.com/agileteam/vpbadge/pkg/metadata"
	"github.com/agileteam/vpbadge/pkg/output"
	"github.com/agileteam/vpbadge/pkg/site"
	"github.com/agileteam/vpbadge/pkg/storage"
	"github.com/araddon/dateparse"
	"github.com/urfave/cli/v2"
)

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger on stderr. quiet forces error level.
func NewLogger(level string, quiet bool) *slog.Logger {
	logLevel := ParseLevel(level)
	if quiet {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// LoadConfig reads the file named by --config, or DefaultConfigFile when it
// exists, then applies command-line overrides.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg := models.DefaultConfig()

	path := c.String("config")
	switch {
	case path != "":
		loaded, err := models.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case fileExists(models.DefaultConfigFile):
		loaded, err := models.LoadConfig(models.DefaultConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	ApplyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// ApplyFlags overrides config values with flags given on the command line.
func ApplyFlags(c *cli.Context, cfg *models.Config) {
	if c.IsSet("dist") {
		cfg.Site.Dist = c.String("dist")
	}
	if c.IsSet("src") {
		cfg.Site.Src = c.String("src")
	}
	if c.IsSet("workers") {
		cfg.Site.Workers = c.Int("workers")
	}
	if c.IsSet("db") {
		cfg.History.Path = c.String("db")
		cfg.History.Enabled = true
	}
	if c.Bool("no-history") {
		cfg.History.Enabled = false
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("settle") {
		cfg.Watch.SettleDelay = c.Duration("settle").String()
	}
	if c.IsSet("metrics-addr") {
		cfg.Watch.MetricsAddr = c.String("metrics-addr")
	}
}

// ParseNow parses --now. An empty value is the current time.
func ParseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: %w", value, err)
	}
	return t, nil
}

// OpenHistory opens the run history database, or returns nil when history
// is disabled.
func OpenHistory(cfg *models.Config) (*db.DB, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	database, err := db.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return database, nil
}

// ProcessorOptions are the per-command knobs of NewProcessor.
type ProcessorOptions struct {
	Now      time.Time // zero means the wall clock
	DryRun   bool
	Recorder *db.DB // nil disables recording
}

// NewProcessor wires the annotator, metadata providers and storage for cfg.
func NewProcessor(cfg *models.Config, logger *slog.Logger, opts ProcessorOptions) (*site.Processor, error) {
	clock := time.Now
	if !opts.Now.IsZero() {
		fixed := opts.Now
		clock = func() time.Time { return fixed }
	}

	policy := badge.MergePolicy(&cfg.Badges)
	annotator := badge.NewAnnotator(policy, badge.WithLogger(logger), badge.WithClock(clock))

	store := &storage.Storage{}
	providers := []metadata.Provider{
		metadata.NewHostData(cfg.Site.Dist, store),
		metadata.NewMetaTags(),
	}
	if cfg.Site.Src != "" {
		providers = append(providers, metadata.NewSourceFrontmatter(cfg.Site.Src, store))
	}
	chain := metadata.NewChain(logger, providers...).WithClock(clock)

	siteOpts := site.Options{
		Dist:      cfg.Site.Dist,
		Metadata:  chain,
		Annotator: annotator,
		Storage:   store,
		Workers:   cfg.Site.GetWorkers(),
		DryRun:    opts.DryRun,
		Logger:    logger,
	}
	// a nil *db.DB must not become a non-nil Recorder
	if opts.Recorder != nil {
		siteOpts.Recorder = opts.Recorder
	}
	return site.NewProcessor(siteOpts)
}

// NewFormatter builds the table formatter from --color.
func NewFormatter(c *cli.Context, now time.Time) (*output.Formatter, error) {
	mode, err := output.ParseColorMode(c.String("color"))
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(now, output.ResolveColors(mode)), nil
}

// ExitOnScanError turns a failed scan into exit status 1.
func ExitOnScanError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, site.ErrNoDist) {
		return cli.Exit(err.Error(), 2)
	}
	return cli.Exit(err.Error(), 1)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
