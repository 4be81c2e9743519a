package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/storage"
)

// AssetsDir is where VitePress writes page chunks, relative to the dist root.
const AssetsDir = "assets"

var (
	hashMapRe   = regexp.MustCompile(`__VP_HASH_MAP__\s*=\s*JSON\.parse\(("(?:[^"\\]|\\.)*")\)`)
	jsonParseRe = regexp.MustCompile(`JSON\.parse\((?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)"|` + "`" + `((?:[^` + "`" + `\\]|\\.)*)` + "`" + `)\)`)
)

// PageData is the page object VitePress embeds in each page chunk.
type PageData struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Frontmatter  map[string]any `json:"frontmatter"`
	RelativePath string         `json:"relativePath"`
	FilePath     string         `json:"filePath"`
	LastUpdated  int64          `json:"lastUpdated"`
}

// HostData reads the page data VitePress compiled into assets/<page>.md.<hash>.js.
type HostData struct {
	root    string
	storage *storage.Storage
}

// NewHostData creates a provider for the dist directory at root.
func NewHostData(root string, s *storage.Storage) *HostData {
	if s == nil {
		s = &storage.Storage{}
	}
	return &HostData{root: root, storage: s}
}

// PageMetadata implements Provider.
func (h *HostData) PageMetadata(ctx context.Context, page Page) (models.PageMetadata, error) {
	meta := models.PageMetadata{Source: "host-data"}

	chunk, err := h.locateChunk(page)
	if err != nil {
		return meta, err
	}

	data, err := h.storage.ReadFile(chunk)
	if err != nil {
		return meta, fmt.Errorf("failed to read page chunk: %w", err)
	}

	pd, err := DecodePageData(data)
	if err != nil {
		return meta, fmt.Errorf("failed to decode page chunk %s: %w", filepath.Base(chunk), err)
	}

	meta.Frontmatter = pd.Frontmatter
	if meta.Frontmatter == nil {
		meta.Frontmatter = map[string]any{}
	}
	meta.Title = pd.Title
	meta.RelativePath = pd.RelativePath
	if pd.LastUpdated > 0 {
		meta.LastUpdated = time.UnixMilli(pd.LastUpdated)
	}

	return meta, nil
}

// ChunkKey is the name prefix VitePress gives a page's chunk: the markdown
// path with "/" replaced by "_", lowercased. "web/Guide.md" -> "web_guide.md".
func ChunkKey(sourcePath string) string {
	return strings.ToLower(strings.ReplaceAll(sourcePath, "/", "_"))
}

// locateChunk finds the page chunk through the inline hash map, then the
// modulepreload hints, then a glob over the assets directory.
func (h *HostData) locateChunk(page Page) (string, error) {
	key := ChunkKey(page.SourcePath())
	assets := filepath.Join(h.root, AssetsDir)

	if page.Doc != nil {
		if hash, ok := lookupHashMap(page.Doc, key); ok {
			for _, name := range []string{key + "." + hash + ".js", key + "." + hash + ".lean.js"} {
				candidate := filepath.Join(assets, name)
				if h.storage.HasFile(candidate) {
					return candidate, nil
				}
			}
		}

		if name, ok := preloadedChunk(page.Doc, key); ok {
			candidate := filepath.Join(assets, name)
			if h.storage.HasFile(candidate) {
				return candidate, nil
			}
		}
	}

	matches, err := filepath.Glob(filepath.Join(assets, globEscape(key)+".*.js"))
	if err != nil {
		return "", fmt.Errorf("failed to search page chunks: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrUnavailable
	}
	// prefer the full chunk over the lean one
	sort.Slice(matches, func(i, j int) bool {
		li, lj := strings.HasSuffix(matches[i], ".lean.js"), strings.HasSuffix(matches[j], ".lean.js")
		if li != lj {
			return !li
		}
		return matches[i] < matches[j]
	})
	return matches[0], nil
}

// lookupHashMap reads window.__VP_HASH_MAP__ from the page's inline scripts.
func lookupHashMap(doc *goquery.Document, key string) (string, bool) {
	var hash string
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := hashMapRe.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		var raw string
		if err := json.Unmarshal([]byte(m[1]), &raw); err != nil {
			return true
		}
		var hashes map[string]string
		if err := json.Unmarshal([]byte(raw), &hashes); err != nil {
			return true
		}
		hash, found = hashes[key]
		return false
	})
	return hash, found && hash != ""
}

// preloadedChunk finds <link rel="modulepreload" href=".../<key>.<hash>[.lean].js">.
func preloadedChunk(doc *goquery.Document, key string) (string, bool) {
	var name string
	doc.Find(`link[rel="modulepreload"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		base := path.Base(strings.SplitN(href, "?", 2)[0])
		if strings.HasPrefix(strings.ToLower(base), key+".") && strings.HasSuffix(base, ".js") {
			name = base
			return false
		}
		return true
	})
	return name, name != ""
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

// DecodePageData extracts the JSON.parse(...) page object from a compiled page chunk.
func DecodePageData(chunk []byte) (*PageData, error) {
	for _, m := range jsonParseRe.FindAllSubmatch(chunk, -1) {
		var body []byte
		for _, g := range m[1:] {
			if g != nil {
				body = g
				break
			}
		}

		text, err := unquoteJS(string(body))
		if err != nil {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader([]byte(text)))
		dec.UseNumber()
		var pd PageData
		if err := dec.Decode(&pd); err != nil {
			continue
		}
		if pd.RelativePath == "" && pd.Frontmatter == nil {
			continue
		}
		return &pd, nil
	}
	return nil, fmt.Errorf("no page data literal found")
}
