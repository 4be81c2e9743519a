// Package history implements the history commands over the run database.
package history

import (
	"fmt"
	"strconv"
	"time"

	"github.com/agileteam/vpbadge/internal/common"
	dbpkg "github.com/agileteam/vpbadge/pkg/db"
	"github.com/agileteam/vpbadge/pkg/output"
	"github.com/urfave/cli/v2"
)

func openDatabase(c *cli.Context) (*dbpkg.DB, error) {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return nil, err
	}
	database, err := dbpkg.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// ListAction lists recent runs, newest first.
func ListAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRuns(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := c.App.Writer
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs found")
		return nil
	}

	formatter, err := common.NewFormatter(c, time.Now())
	if err != nil {
		return err
	}
	if err := output.WriteRuns(w, runs, formatter); err != nil {
		return fmt.Errorf("failed to render runs: %w", err)
	}

	_, _ = fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	_, _ = fmt.Fprintf(w, "Tip: Use 'vpbadge history show <id>' to see the badges of a run\n")
	return nil
}

// ShowAction shows one run and its badge decisions. Without an argument the
// latest run is shown.
func ShowAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	run, err := GetRunOrLatest(c, database)
	if err != nil {
		return err
	}

	badges, err := database.GetRunBadges(run.RunID)
	if err != nil {
		return fmt.Errorf("failed to get run badges: %w", err)
	}

	formatter, err := common.NewFormatter(c, time.Now())
	if err != nil {
		return err
	}

	w := c.App.Writer
	if err := output.WriteRuns(w, []dbpkg.Run{*run}, formatter); err != nil {
		return fmt.Errorf("failed to render run: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	if len(badges) == 0 {
		_, _ = fmt.Fprintln(w, "No markers recorded for this run")
		return nil
	}
	if err := output.WriteBadges(w, badges, formatter); err != nil {
		return fmt.Errorf("failed to render badges: %w", err)
	}
	return nil
}

// PruneAction deletes all but the newest --keep runs.
func PruneAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	keep := c.Int("keep")
	if keep < 0 {
		return cli.Exit("--keep must be non-negative", 2)
	}
	removed, err := database.PruneRuns(keep)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "Removed %d runs, kept the newest %d\n", removed, keep)
	return nil
}

// GetRunOrLatest returns the run named by the first argument, or the latest run if none is given
func GetRunOrLatest(c *cli.Context, database *dbpkg.DB) (*dbpkg.Run, error) {
	if c.NArg() == 0 {
		run, err := database.GetLatestRun()
		if err != nil {
			return nil, fmt.Errorf("%w. Run 'vpbadge annotate' first", err)
		}
		return run, nil
	}

	runID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid run ID: %s", c.Args().First())
	}
	return database.GetRun(runID)
}
