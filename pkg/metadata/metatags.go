package metadata

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agileteam/vpbadge/models"
)

const (
	metaPrefix         = "vp:"
	metaLastUpdatedKey = "lastUpdated"
)

// MetaTags reads <meta name="vp:<key>" content="..."> tags from the page.
// Content is JSON-decoded when possible, else kept as a string.
type MetaTags struct{}

// NewMetaTags creates the meta-tag provider.
func NewMetaTags() *MetaTags {
	return &MetaTags{}
}

// PageMetadata implements Provider.
func (m *MetaTags) PageMetadata(ctx context.Context, page Page) (models.PageMetadata, error) {
	meta := models.PageMetadata{Source: "meta-tags"}
	if page.Doc == nil {
		return meta, ErrUnavailable
	}

	tags := page.Doc.Find(`meta[name^="` + metaPrefix + `"]`)
	if tags.Length() == 0 {
		return meta, ErrUnavailable
	}

	frontmatter := make(map[string]any, tags.Length())
	tags.Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimPrefix(s.AttrOr("name", ""), metaPrefix)
		if name == "" {
			return
		}
		content := s.AttrOr("content", "")
		frontmatter[name] = decodeContent(content)

		if name == metaLastUpdatedKey {
			if ms, err := strconv.ParseInt(strings.TrimSpace(content), 10, 64); err == nil && ms > 0 {
				meta.LastUpdated = time.UnixMilli(ms)
			}
		}
	})

	meta.Frontmatter = frontmatter
	if title, ok := frontmatter["title"].(string); ok {
		meta.Title = title
	}
	return meta, nil
}

func decodeContent(content string) any {
	if !json.Valid([]byte(content)) {
		return content
	}
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return content
	}
	return v
}
