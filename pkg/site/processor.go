// Package site runs the badge annotator over a built VitePress site.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/badge"
	"github.com/agileteam/vpbadge/pkg/metadata"
	"github.com/agileteam/vpbadge/pkg/metrics"
	"github.com/agileteam/vpbadge/pkg/storage"
	"golang.org/x/net/html"
)

// ErrNoDist is returned when the dist directory does not exist.
var ErrNoDist = errors.New("dist directory not found")

// Recorder stores the outcome of scans. *db.DB satisfies it.
type Recorder interface {
	CreateRun(trigger string, dryRun bool, startedAt time.Time) (int64, error)
	InsertBadges(runID int64, badges []models.BadgeRecord) error
	FinishRun(runID int64, stats models.RunStats) error
}

// Options configures a Processor.
type Options struct {
	Dist      string
	Metadata  metadata.Provider
	Annotator *badge.Annotator
	Storage   *storage.Storage
	Recorder  Recorder // optional
	Workers   int
	DryRun    bool
	Logger    *slog.Logger
}

// Processor annotates the rendered pages of one dist directory.
type Processor struct {
	dist      string
	meta      metadata.Provider
	annotator *badge.Annotator
	storage   *storage.Storage
	recorder  Recorder
	workers   int
	dryRun    bool
	logger    *slog.Logger
}

// NewProcessor creates a processor. Dist and Annotator are required; a
// missing metadata provider falls back to an empty chain (every page is
// treated as updated now).
func NewProcessor(opts Options) (*Processor, error) {
	if opts.Dist == "" {
		return nil, fmt.Errorf("dist directory is required")
	}
	if opts.Annotator == nil {
		return nil, fmt.Errorf("annotator is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Storage == nil {
		opts.Storage = &storage.Storage{}
	}
	if opts.Metadata == nil {
		opts.Metadata = metadata.NewChain(opts.Logger).WithClock(opts.Annotator.Now)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Processor{
		dist:      filepath.Clean(opts.Dist),
		meta:      opts.Metadata,
		annotator: opts.Annotator,
		storage:   opts.Storage,
		recorder:  opts.Recorder,
		workers:   opts.Workers,
		dryRun:    opts.DryRun,
		logger:    opts.Logger,
	}, nil
}

// Dist returns the dist directory.
func (p *Processor) Dist() string {
	return p.dist
}

// Pages lists every rendered page under dist as a slash-separated relative
// path, skipping the assets directory. The result is sorted.
func (p *Processor) Pages() ([]string, error) {
	if !p.storage.IsDir(p.dist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDist, p.dist)
	}

	var pages []string
	err := filepath.WalkDir(p.dist, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == metadata.AssetsDir && filepath.Dir(path) == p.dist {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}
		rel, err := filepath.Rel(p.dist, path)
		if err != nil {
			return err
		}
		pages = append(pages, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	sort.Strings(pages)
	return pages, nil
}

// relPath accepts an absolute path under dist or a dist-relative one.
func (p *Processor) relPath(page string) (string, error) {
	rel := filepath.Clean(page)
	if filepath.IsAbs(page) {
		var err error
		if rel, err = filepath.Rel(p.dist, page); err != nil {
			return "", fmt.Errorf("page %s is outside %s", page, p.dist)
		}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("page %s is outside %s", page, p.dist)
	}
	return filepath.ToSlash(rel), nil
}

// ProcessPage annotates one page. The file is rewritten only when the pass
// changed at least one element, so an already annotated page is left alone.
func (p *Processor) ProcessPage(ctx context.Context, page string) (models.PageResult, error) {
	rel, err := p.relPath(page)
	if err != nil {
		return models.PageResult{Path: page, Error: err, ErrorType: "path_error"}, err
	}
	result := models.PageResult{Path: rel}
	file := filepath.Join(p.dist, filepath.FromSlash(rel))

	raw, err := p.storage.ReadFile(file)
	if err != nil {
		result.Error = err
		result.ErrorType = "read_error"
		return result, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("failed to parse %s: %w", rel, err)
		result.ErrorType = "parse_error"
		return result, result.Error
	}

	meta, err := p.meta.PageMetadata(ctx, metadata.Page{Path: file, RelPath: rel, Doc: doc})
	if err != nil {
		// a bare provider may fail; fall back the same way the chain does
		p.logger.Warn("Failed to resolve page metadata", "page", rel, "error", err)
		meta = models.PageMetadata{Frontmatter: map[string]any{}, LastUpdated: p.annotator.Now(), Source: "default"}
	}
	result.Metadata = meta

	res := p.annotator.Annotate(doc, meta)
	result.Mutations = res.Mutations
	for _, f := range res.Found {
		visible := f.Decision.Visible()
		metrics.RecordDecision(f.Marker.Type, string(f.Role), visible)
		result.Badges = append(result.Badges, models.BadgeRecord{
			Page:      rel,
			Role:      f.Role,
			Title:     f.Marker.Title,
			Type:      f.Marker.Type,
			Visible:   visible,
			ExpiresAt: f.Decision.ExpiresAt,
			Rule:      f.Decision.Rule,
		})
	}

	if res.Mutations == 0 || p.dryRun {
		return result, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc.Nodes[0]); err != nil {
		result.Error = fmt.Errorf("failed to render %s: %w", rel, err)
		result.ErrorType = "render_error"
		return result, result.Error
	}
	if err := p.storage.SaveFile(file, buf.Bytes()); err != nil {
		result.Error = err
		result.ErrorType = "write_error"
		return result, err
	}

	result.Written = true
	metrics.RecordPageWritten()
	p.logger.Debug("Page annotated", "page", rel, "mutations", res.Mutations, "visible", res.Visible())
	return result, nil
}
