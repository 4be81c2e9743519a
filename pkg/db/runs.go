package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/agileteam/vpbadge/models"
)

// Run represents one scan of the site
type Run struct {
	RunID        int64
	Trigger      string
	DryRun       bool
	StartedAt    time.Time
	FinishedAt   time.Time // zero while the run is in progress
	PageCount    int
	WrittenCount int
	FailedCount  int
	BadgeCount   int
	VisibleCount int
}

// Duration is the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CreateRun creates a new run record and returns its ID
func (db *DB) CreateRun(trigger string, dryRun bool, startedAt time.Time) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (trigger_kind, dry_run, started_at)
		VALUES (?, ?, ?)
	`, trigger, dryRun, startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// InsertBadges records the badge decisions taken on one page during a run
func (db *DB) InsertBadges(runID int64, badges []models.BadgeRecord) error {
	if len(badges) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after Commit

	stmt, err := tx.Prepare(`
		INSERT INTO badges (run_id, page, role, title, badge_type, visible, expires_at, rule)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare badge insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range badges {
		var expiresAt interface{}
		if !b.ExpiresAt.IsZero() {
			expiresAt = b.ExpiresAt.UTC()
		}
		if _, err := stmt.Exec(runID, b.Page, string(b.Role), b.Title, b.Type, b.Visible, expiresAt, b.Rule); err != nil {
			return fmt.Errorf("failed to insert badge %q on %s: %w", b.Title, b.Page, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit badges: %w", err)
	}
	return nil
}

// FinishRun stores the totals of a completed run
func (db *DB) FinishRun(runID int64, stats models.RunStats) error {
	finishedAt := stats.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	result, err := db.Exec(`
		UPDATE runs
		SET finished_at = ?, page_count = ?, written_count = ?, failed_count = ?, badge_count = ?, visible_count = ?
		WHERE run_id = ?
	`, finishedAt.UTC(), stats.Pages, stats.Written, stats.Failed, stats.Badges, stats.Visible, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

const runColumns = `run_id, trigger_kind, dry_run, started_at, finished_at, page_count, written_count, failed_count, badge_count, visible_count`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run      Run
		finished sql.NullTime
	)
	err := row.Scan(
		&run.RunID,
		&run.Trigger,
		&run.DryRun,
		&run.StartedAt,
		&finished,
		&run.PageCount,
		&run.WrittenCount,
		&run.FailedCount,
		&run.BadgeCount,
		&run.VisibleCount,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// GetRun retrieves a run by its ID
func (db *DB) GetRun(runID int64) (*Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetLatestRun retrieves the most recent run
func (db *DB) GetLatestRun() (*Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY run_id DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no runs recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRunBadges retrieves every badge decision recorded for a run
func (db *DB) GetRunBadges(runID int64) ([]models.BadgeRecord, error) {
	rows, err := db.Query(`
		SELECT page, role, title, badge_type, visible, expires_at, rule
		FROM badges
		WHERE run_id = ?
		ORDER BY page, badge_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run badges: %w", err)
	}
	defer rows.Close()

	var badges []models.BadgeRecord
	for rows.Next() {
		var (
			b       models.BadgeRecord
			role    string
			expires sql.NullTime
		)
		if err := rows.Scan(&b.Page, &role, &b.Title, &b.Type, &b.Visible, &expires, &b.Rule); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.Role = models.Role(role)
		if expires.Valid {
			b.ExpiresAt = expires.Time
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// PruneRuns deletes all but the newest keep runs and returns how many were removed
func (db *DB) PruneRuns(keep int) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM runs
		WHERE run_id NOT IN (SELECT run_id FROM runs ORDER BY run_id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}
