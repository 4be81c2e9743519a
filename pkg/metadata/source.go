package metadata

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/storage"
	"gopkg.in/yaml.v3"
)

var frontmatterFence = []byte("---")

// SourceFrontmatter reads the markdown source a page was rendered from:
// YAML frontmatter for the keys, file modification time for LastUpdated.
type SourceFrontmatter struct {
	root    string
	storage *storage.Storage
}

// NewSourceFrontmatter creates a provider for the markdown directory at root.
func NewSourceFrontmatter(root string, s *storage.Storage) *SourceFrontmatter {
	if s == nil {
		s = &storage.Storage{}
	}
	return &SourceFrontmatter{root: root, storage: s}
}

// PageMetadata implements Provider.
func (p *SourceFrontmatter) PageMetadata(ctx context.Context, page Page) (models.PageMetadata, error) {
	meta := models.PageMetadata{Source: "source"}
	if p.root == "" {
		return meta, ErrUnavailable
	}

	rel := page.SourcePath()
	file := filepath.Join(p.root, filepath.FromSlash(rel))
	if !p.storage.HasFile(file) {
		return meta, ErrUnavailable
	}

	data, err := p.storage.ReadFile(file)
	if err != nil {
		return meta, err
	}
	stats, err := p.storage.GetFileStats(file)
	if err != nil {
		return meta, err
	}

	fm, err := ParseFrontmatter(data)
	if err != nil {
		return meta, fmt.Errorf("%s: %w", rel, err)
	}

	meta.Frontmatter = fm
	meta.LastUpdated = stats.ModTime
	meta.RelativePath = rel
	if title, ok := fm["title"].(string); ok {
		meta.Title = title
	}
	return meta, nil
}

// ParseFrontmatter decodes the leading "---" delimited YAML block of a
// markdown document. A document without one yields an empty map.
func ParseFrontmatter(doc []byte) (map[string]any, error) {
	fm := map[string]any{}

	doc = bytes.TrimPrefix(doc, []byte("\xef\xbb\xbf"))
	doc = bytes.ReplaceAll(doc, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(doc, frontmatterFence) {
		return fm, nil
	}

	rest := doc[len(frontmatterFence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return fm, nil
	}
	rest = rest[nl+1:]

	var block []byte
	if bytes.HasPrefix(rest, frontmatterFence) {
		block = nil
	} else {
		end := bytes.Index(rest, append([]byte("\n"), frontmatterFence...))
		if end < 0 {
			return fm, fmt.Errorf("unterminated frontmatter")
		}
		block = rest[:end]
	}

	if err := yaml.Unmarshal(block, &fm); err != nil {
		return fm, fmt.Errorf("invalid frontmatter: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, nil
}
