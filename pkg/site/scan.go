package site

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/metrics"
)

// Summary aggregates one scan.
type Summary struct {
	Trigger    models.TriggerKind
	RunID      int64 // 0 when no recorder is set
	Results    []models.PageResult
	Pages      int
	Matched    int
	Visible    int
	Suppressed int
	Written    int
	Failed     int
	Duration   time.Duration
}

// Badges flattens every page's badge records, in page order.
func (s Summary) Badges() []models.BadgeRecord {
	var out []models.BadgeRecord
	for _, r := range s.Results {
		out = append(out, r.Badges...)
	}
	return out
}

// Stats converts the summary into the totals stored for a run.
func (s Summary) Stats() models.RunStats {
	return models.RunStats{
		Pages:   s.Pages,
		Written: s.Written,
		Failed:  s.Failed,
		Badges:  s.Matched,
		Visible: s.Visible,
	}
}

// Job is one page for a worker to process.
type Job struct {
	Page string
}

// Scan processes pages on a fixed worker pool. An empty page list means
// every page under dist. Per-page failures are collected in the summary;
// the returned error reports that at least one page failed, or that the
// page list could not be built.
func (p *Processor) Scan(ctx context.Context, trigger models.Trigger, pages []string) (Summary, error) {
	start := time.Now()
	summary := Summary{Trigger: trigger.Kind}

	if len(pages) == 0 {
		all, err := p.Pages()
		if err != nil {
			return summary, err
		}
		pages = all
	}
	pages = dedupe(pages)

	runID := p.startRun(trigger, start)
	summary.RunID = runID

	p.logger.Info("Starting scan", "trigger", trigger.Kind, "page_count", len(pages), "workers", p.workers, "dry_run", p.dryRun)

	var wg sync.WaitGroup
	jobs := make(chan Job, len(pages))
	results := make(chan models.PageResult, len(pages))

	for w := 1; w <= p.workers; w++ {
		wg.Add(1)
		go p.worker(ctx, w, &wg, jobs, results)
	}

	for _, page := range pages {
		jobs <- Job{Page: page}
	}
	close(jobs)

	wg.Wait()
	close(results)

	for result := range results {
		summary.Results = append(summary.Results, result)
	}
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Path < summary.Results[j].Path
	})

	var runErr error
	for _, result := range summary.Results {
		summary.Pages++
		if result.Error != nil {
			summary.Failed++
			runErr = fmt.Errorf("one or more pages failed")
			continue
		}
		summary.Matched += len(result.Badges)
		summary.Visible += result.Visible()
		if result.Written {
			summary.Written++
		}
		if runID > 0 {
			if err := p.recorder.InsertBadges(runID, result.Badges); err != nil {
				p.logger.Warn("Failed to record badges", "page", result.Path, "run_id", runID, "error", err)
			}
		}
	}
	summary.Suppressed = summary.Matched - summary.Visible
	summary.Duration = time.Since(start)

	if ctx.Err() != nil && runErr == nil {
		runErr = ctx.Err()
	}

	p.finishRun(runID, summary)
	metrics.RecordScan(string(trigger.Kind), summary.Duration.Seconds())

	p.logger.Info("Scan finished",
		"trigger", trigger.Kind,
		"pages", summary.Pages,
		"matched", summary.Matched,
		"visible", summary.Visible,
		"suppressed", summary.Suppressed,
		"written", summary.Written,
		"failed", summary.Failed,
		"duration", summary.Duration)

	return summary, runErr
}

// worker processes jobs until the channel closes. After cancellation the
// remaining pages are reported as cancelled without being read.
func (p *Processor) worker(ctx context.Context, id int, wg *sync.WaitGroup, jobs <-chan Job, results chan<- models.PageResult) {
	defer wg.Done()
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- models.PageResult{Path: job.Page, Error: err, ErrorType: "cancelled"}
			continue
		}

		result, err := p.ProcessPage(ctx, job.Page)
		if err != nil {
			p.logger.Error("Error processing page", "worker_id", id, "page", job.Page, "error", err)
			metrics.RecordPageError(result.ErrorType)
		}
		results <- result
	}
}

func (p *Processor) startRun(trigger models.Trigger, start time.Time) int64 {
	if p.recorder == nil {
		return 0
	}
	runID, err := p.recorder.CreateRun(string(trigger.Kind), p.dryRun, start)
	if err != nil {
		p.logger.Warn("Failed to record run", "trigger", trigger.Kind, "error", err)
		return 0
	}
	return runID
}

func (p *Processor) finishRun(runID int64, summary Summary) {
	if runID == 0 {
		return
	}
	stats := summary.Stats()
	stats.FinishedAt = time.Now()
	if err := p.recorder.FinishRun(runID, stats); err != nil {
		p.logger.Warn("Failed to finish run", "run_id", runID, "error", err)
	}
}

func dedupe(pages []string) []string {
	seen := make(map[string]struct{}, len(pages))
	out := make([]string, 0, len(pages))
	for _, page := range pages {
		if _, ok := seen[page]; ok {
			continue
		}
		seen[page] = struct{}{}
		out = append(out, page)
	}
	return out
}
