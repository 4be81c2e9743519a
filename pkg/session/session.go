// Package session drives the annotator from host events: one pass when the
// site becomes ready, then one pass per batch of navigation or content
// triggers.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/site"
)

// DefaultSettleDelay lets the host finish rendering before a pass runs.
const DefaultSettleDelay = 500 * time.Millisecond

// Host is the environment the session runs in.
type Host interface {
	// Ready blocks until the document root exists.
	Ready(ctx context.Context) error
	// Triggers delivers navigation and content events. Closing it ends the session.
	Triggers() <-chan models.Trigger
}

// Scanner runs one annotation pass. *site.Processor satisfies it.
type Scanner interface {
	Scan(ctx context.Context, trigger models.Trigger, pages []string) (site.Summary, error)
}

// Options configures a session.
type Options struct {
	SettleDelay time.Duration
	Logger      *slog.Logger
	// OnScan is called after every pass, from the session goroutine.
	OnScan func(site.Summary, error)
}

// Session is a running trigger loop.
type Session struct {
	host    Host
	scanner Scanner
	settle  time.Duration
	logger  *slog.Logger
	onScan  func(site.Summary, error)

	mu    sync.Mutex
	scans int
	err   error
	done  chan struct{}
}

// Initialize starts the session in the background and returns immediately.
// The loop ends when ctx is cancelled or the host closes its trigger channel.
func Initialize(ctx context.Context, host Host, scanner Scanner, opts Options) *Session {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		host:    host,
		scanner: scanner,
		settle:  opts.SettleDelay,
		logger:  opts.Logger,
		onScan:  opts.OnScan,
		done:    make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Wait blocks until the loop has ended and returns the readiness error, if
// the site never became ready.
func (s *Session) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the loop ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Scans reports how many passes have run.
func (s *Session) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	if err := s.host.Ready(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Site never became ready", "error", err)
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return
	}

	triggers := s.host.Triggers()
	pending := &models.Trigger{Kind: models.TriggerInitialLoad}

	for {
		trigger, open := s.settleAndCollect(ctx, triggers, pending)
		if trigger == nil {
			return
		}
		s.scan(ctx, *trigger)
		if !open {
			return
		}

		select {
		case <-ctx.Done():
			return
		case t, ok := <-triggers:
			if !ok {
				return
			}
			pending = &t
		}
	}
}

// settleAndCollect waits out the settle delay, folding every trigger that
// arrives meanwhile into pending. It returns nil when ctx ends first, and
// open=false when the trigger channel was closed while waiting.
func (s *Session) settleAndCollect(ctx context.Context, triggers <-chan models.Trigger, pending *models.Trigger) (*models.Trigger, bool) {
	timer := time.NewTimer(s.settle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
			return pending, true
		case t, ok := <-triggers:
			if !ok {
				return pending, false
			}
			merged := Coalesce(*pending, t)
			pending = &merged
		}
	}
}

func (s *Session) scan(ctx context.Context, trigger models.Trigger) {
	s.logger.Info("Running annotation pass", "trigger", trigger.Kind, "pages", len(trigger.Pages))

	summary, err := s.scanner.Scan(ctx, trigger, trigger.Pages)
	if err != nil {
		s.logger.Warn("Annotation pass finished with errors", "trigger", trigger.Kind, "failed", summary.Failed, "error", err)
	}

	s.mu.Lock()
	s.scans++
	s.mu.Unlock()

	if s.onScan != nil {
		s.onScan(summary, err)
	}
}

// Coalesce merges two triggers into one pass. The page sets are unioned;
// either side covering every page makes the result cover every page. The
// later trigger's kind wins, except that initial-load is never downgraded.
func Coalesce(a, b models.Trigger) models.Trigger {
	kind := b.Kind
	if a.Kind == models.TriggerInitialLoad {
		kind = a.Kind
	}
	if a.AllPages() || b.AllPages() {
		return models.Trigger{Kind: kind}
	}

	seen := make(map[string]struct{}, len(a.Pages)+len(b.Pages))
	pages := make([]string, 0, len(a.Pages)+len(b.Pages))
	for _, p := range append(append([]string{}, a.Pages...), b.Pages...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		pages = append(pages, p)
	}
	sort.Strings(pages)
	return models.Trigger{Kind: kind, Pages: pages}
}
