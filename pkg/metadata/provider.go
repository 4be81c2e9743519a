// Package metadata resolves the frontmatter and last-modified time of a
// rendered VitePress page.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/metrics"
)

// ErrUnavailable means a provider has no data for the page.
var ErrUnavailable = errors.New("metadata unavailable")

// Page is a rendered page being scanned.
type Page struct {
	Path    string            // file path on disk
	RelPath string            // slash-separated path relative to the dist root, e.g. "web/guide.html"
	Doc     *goquery.Document // parsed page; may be nil
}

// SourcePath returns the markdown path the page was rendered from, e.g. "web/guide.md".
func (p Page) SourcePath() string {
	rel := strings.TrimPrefix(path.Clean("/"+p.RelPath), "/")
	return strings.TrimSuffix(rel, path.Ext(rel)) + ".md"
}

// Provider supplies page metadata.
type Provider interface {
	PageMetadata(ctx context.Context, page Page) (models.PageMetadata, error)
}

// Chain asks providers in order and fills each field from the first one
// that supplies it. It never fails: with no data at all the frontmatter is
// empty and LastUpdated is the current time.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
	now       func() time.Time
}

// NewChain creates a chain over providers. A nil logger uses slog.Default.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces time.Now for the last-updated fallback.
func (c *Chain) WithClock(now func() time.Time) *Chain {
	if now != nil {
		c.now = now
	}
	return c
}

// PageMetadata implements Provider. The returned error is always nil.
func (c *Chain) PageMetadata(ctx context.Context, page Page) (models.PageMetadata, error) {
	return c.Resolve(ctx, page), nil
}

// Resolve merges metadata from every provider.
func (c *Chain) Resolve(ctx context.Context, page Page) models.PageMetadata {
	var (
		out     models.PageMetadata
		sources []string
	)

	for _, p := range c.providers {
		if ctx.Err() != nil {
			break
		}

		meta, err := c.safeCall(ctx, p, page)
		if err != nil {
			if !errors.Is(err, ErrUnavailable) {
				c.logger.Warn("Failed to read page metadata",
					"page", page.RelPath,
					"provider", fmt.Sprintf("%T", p),
					"error", err)
			}
			continue
		}

		used := false
		if out.Frontmatter == nil && meta.Frontmatter != nil {
			out.Frontmatter = meta.Frontmatter
			used = true
		}
		if out.LastUpdated.IsZero() && !meta.LastUpdated.IsZero() {
			out.LastUpdated = meta.LastUpdated
			used = true
		}
		if out.Title == "" && meta.Title != "" {
			out.Title = meta.Title
		}
		if out.RelativePath == "" && meta.RelativePath != "" {
			out.RelativePath = meta.RelativePath
		}
		if used && meta.Source != "" {
			sources = append(sources, meta.Source)
		}
	}

	if out.Frontmatter == nil {
		out.Frontmatter = map[string]any{}
		metrics.RecordMetadataFallback("frontmatter")
	}
	if out.LastUpdated.IsZero() {
		out.LastUpdated = c.now()
		metrics.RecordMetadataFallback("last_updated")
		c.logger.Warn("No last-updated time for page, using current time", "page", page.RelPath)
	}
	if out.RelativePath == "" {
		out.RelativePath = page.SourcePath()
	}
	if len(sources) == 0 {
		sources = append(sources, "default")
	}
	out.Source = strings.Join(sources, "+")

	return out
}

// safeCall turns a provider panic into an error so one bad page never stops a scan.
func (c *Chain) safeCall(ctx context.Context, p Provider, page Page) (meta models.PageMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return p.PageMetadata(ctx, page)
}

// PanicError wraps a recovered provider panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "metadata provider panicked"
}
