// Package report implements the report command.
package report

import (
	"fmt"
	"time"

	"github.com/agileteam/vpbadge/internal/common"
	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/output"
	"github.com/urfave/cli/v2"
)

// ReportAction runs a dry pass and prints every marker with its decision.
// Nothing is written and no run is recorded.
func ReportAction(c *cli.Context) error {
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

	proc, err := common.NewProcessor(cfg, logger, common.ProcessorOptions{Now: fixedNow, DryRun: true})
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	summary, scanErr := proc.Scan(c.Context, models.Trigger{Kind: models.TriggerManual}, c.Args().Slice())
	if summary.Pages == 0 && scanErr != nil {
		return common.ExitOnScanError(scanErr)
	}

	formatter, err := common.NewFormatter(c, now)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	badges := summary.Badges()
	if c.Bool("expired") {
		filtered := badges[:0]
		for _, b := range badges {
			if !b.Visible {
				filtered = append(filtered, b)
			}
		}
		badges = filtered
	}

	w := c.App.Writer
	if len(badges) == 0 {
		_, _ = fmt.Fprintln(w, "No markers found")
	} else if err := output.WriteBadges(w, badges, formatter); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	_, _ = fmt.Fprintln(w)
	output.WriteSummary(w, summary, formatter)
	return common.ExitOnScanError(scanErr)
}
