package models

import "time"

// PageMetadata is the per-page data the badge annotator consults.
// It is supplied by a metadata provider and never mutated by the annotator.
type PageMetadata struct {
	// Frontmatter holds author-supplied keys, including optional
	// newUntil / <type>Until override dates.
	Frontmatter map[string]any `json:"frontmatter" yaml:"frontmatter"`

	// LastUpdated is the page's last-modified time. Zero means unknown.
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`

	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	RelativePath string `json:"relative_path,omitempty" yaml:"relative_path,omitempty"` // e.g. "web/guide.md"

	// Source names the provider(s) the fields came from, e.g. "host-data+meta-tags".
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Value returns the frontmatter value for key, or nil.
func (m PageMetadata) Value(key string) any {
	if m.Frontmatter == nil {
		return nil
	}
	return m.Frontmatter[key]
}

// HasFrontmatter reports whether any frontmatter key is present.
func (m PageMetadata) HasFrontmatter() bool {
	return len(m.Frontmatter) > 0
}
