// Package annotate implements the annotate and watch commands.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agileteam/vpbadge/internal/common"
	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/output"
	"github.com/agileteam/vpbadge/pkg/session"
	"github.com/agileteam/vpbadge/pkg/site"
	"github.com/agileteam/vpbadge/pkg/watcher"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// AnnotateAction runs one pass over the dist directory. Page arguments limit
// the pass to those pages.
func AnnotateAction(c *cli.Context) error {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	logger := common.NewLogger(cfg.Logging.Level, c.Bool("quiet"))

	now, err := common.ParseNow(c.String("now"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	var fixedNow time.Time
	if c.IsSet("now") {
		fixedNow = now
	}

	database, err := common.OpenHistory(cfg)
	if err != nil {
		logger.Error("failed to open history database", "error", err)
		return cli.Exit(err.Error(), 2)
	}
	if database != nil {
		defer database.Close()
	}

	proc, err := common.NewProcessor(cfg, logger, common.ProcessorOptions{
		Now:      fixedNow,
		DryRun:   c.Bool("dry-run"),
		Recorder: database,
	})
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	formatter, err := common.NewFormatter(c, now)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	logger.Info("Annotating site", "config", cfg.String(), "dry_run", c.Bool("dry-run"))
	summary, scanErr := proc.Scan(c.Context, models.Trigger{Kind: models.TriggerManual}, c.Args().Slice())
	if summary.Pages > 0 || scanErr == nil {
		writeSummary(c, summary, formatter)
	}
	return common.ExitOnScanError(scanErr)
}

// WatchAction waits for the dist directory, annotates it, then re-annotates
// pages as the site is rebuilt. It runs until interrupted.
func WatchAction(c *cli.Context) error {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	logger := common.NewLogger(cfg.Logging.Level, c.Bool("quiet"))

	database, err := common.OpenHistory(cfg)
	if err != nil {
		logger.Error("failed to open history database", "error", err)
		return cli.Exit(err.Error(), 2)
	}
	if database != nil {
		defer database.Close()
	}

	proc, err := common.NewProcessor(cfg, logger, common.ProcessorOptions{Recorder: database})
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	formatter, err := common.NewFormatter(c, time.Now())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	w, err := watcher.New(cfg.Site.Dist, watcher.Options{Logger: logger})
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	sessCtx, cancelSession := context.WithCancel(gCtx)
	defer cancelSession()

	sess := session.Initialize(sessCtx, w, proc, session.Options{
		SettleDelay: cfg.Watch.GetSettleDelay(),
		Logger:      logger,
		OnScan: func(summary site.Summary, _ error) {
			w.Refresh(writtenPages(summary))
			writeSummary(c, summary, formatter)
		},
	})

	g.Go(func() error {
		defer cancelSession()
		err := sess.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watch session: %w", err)
		}
		return nil
	})

	if addr := cfg.Watch.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		logger.Info("Serving metrics", "address", addr)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-sessCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("Watching site", "dist", cfg.Site.Dist, "settle_delay", cfg.Watch.GetSettleDelay())
	if err := g.Wait(); err != nil {
		logger.Error("watch stopped", "error", err)
		return cli.Exit(err.Error(), 1)
	}
	logger.Info("watch stopped")
	return nil
}

func writtenPages(summary site.Summary) []string {
	var pages []string
	for _, r := range summary.Results {
		if r.Written {
			pages = append(pages, r.Path)
		}
	}
	return pages
}

func writeSummary(c *cli.Context, summary site.Summary, formatter *output.Formatter) {
	if c.Bool("quiet") {
		return
	}
	output.WriteSummary(c.App.Writer, summary, formatter)
}
