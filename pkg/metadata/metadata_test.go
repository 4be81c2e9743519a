package metadata

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agileteam/vpbadge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const qcChunk = `import{c as u,o as c}from"./chunks/framework.BjhQmtN6.js";const C=JSON.parse('{"title":"质量","description":"","frontmatter":{"layout":"page","hotUntil":"2099-01-01","note":"it\'s"},"headers":[],"relativePath":"team/qc.md","filePath":"team/qc.md","lastUpdated":1732265191000}'),g={name:"team/qc.md"};export{C as __pageData};`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func docFrom(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDecodePageData(t *testing.T) {
	pd, err := DecodePageData([]byte(qcChunk))
	require.NoError(t, err)

	assert.Equal(t, "质量", pd.Title)
	assert.Equal(t, "team/qc.md", pd.RelativePath)
	assert.Equal(t, int64(1732265191000), pd.LastUpdated)
	assert.Equal(t, "page", pd.Frontmatter["layout"])
	assert.Equal(t, "2099-01-01", pd.Frontmatter["hotUntil"])
	assert.Equal(t, "it's", pd.Frontmatter["note"])
}

func TestDecodePageData_DoubleQuoted(t *testing.T) {
	chunk := `const d=JSON.parse("{\"title\":\"T\",\"frontmatter\":{},\"relativePath\":\"a/b.md\",\"lastUpdated\":5}");`
	pd, err := DecodePageData([]byte(chunk))
	require.NoError(t, err)
	assert.Equal(t, "a/b.md", pd.RelativePath)
	assert.Equal(t, int64(5), pd.LastUpdated)
}

func TestDecodePageData_NoLiteral(t *testing.T) {
	_, err := DecodePageData([]byte(`export default {}`))
	assert.Error(t, err)
}

func TestUnquoteJS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `plain`, want: "plain"},
		{in: `it\'s`, want: "it's"},
		{in: `a\\b`, want: `a\b`},
		{in: `\"q\"`, want: `"q"`},
		{in: `line\nbreak`, want: "line\nbreak"},
		{in: `\x41B\u{43}`, want: "ABC"},
		{in: `🚀`, want: "🚀"},
		{in: `\中`, want: "中"},
	}
	for _, tt := range tests {
		got, err := unquoteJS(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := unquoteJS(`bad\`)
	assert.Error(t, err)
}

func TestChunkKey(t *testing.T) {
	assert.Equal(t, "web_guide.md", ChunkKey("web/Guide.md"))
	assert.Equal(t, "index.md", ChunkKey("index.md"))
}

func TestPageSourcePath(t *testing.T) {
	assert.Equal(t, "team/qc.md", Page{RelPath: "team/qc.html"}.SourcePath())
	assert.Equal(t, "index.md", Page{RelPath: "index.html"}.SourcePath())
	assert.Equal(t, "web/index.md", Page{RelPath: "/web/index.html"}.SourcePath())
}

func TestHostData_HashMap(t *testing.T) {
	dist := t.TempDir()
	writeFile(t, filepath.Join(dist, "assets", "team_qc.md.CQv1mbBt.js"), qcChunk)

	doc := docFrom(t, `<html><head><script>window.__VP_HASH_MAP__=JSON.parse("{\"team_qc.md\":\"CQv1mbBt\"}");</script></head><body></body></html>`)
	page := Page{Path: filepath.Join(dist, "team", "qc.html"), RelPath: "team/qc.html", Doc: doc}

	meta, err := NewHostData(dist, nil).PageMetadata(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "host-data", meta.Source)
	assert.Equal(t, time.UnixMilli(1732265191000), meta.LastUpdated)
	assert.Equal(t, "2099-01-01", meta.Frontmatter["hotUntil"])
}

func TestHostData_ModulePreload(t *testing.T) {
	dist := t.TempDir()
	writeFile(t, filepath.Join(dist, "assets", "team_qc.md.AAAA.lean.js"), qcChunk)

	doc := docFrom(t, `<html><head><link rel="modulepreload" href="/docs/assets/team_qc.md.AAAA.lean.js"></head><body></body></html>`)
	page := Page{RelPath: "team/qc.html", Doc: doc}

	meta, err := NewHostData(dist, nil).PageMetadata(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "team/qc.md", meta.RelativePath)
}

func TestHostData_GlobPrefersFullChunk(t *testing.T) {
	dist := t.TempDir()
	writeFile(t, filepath.Join(dist, "assets", "team_qc.md.BBBB.lean.js"), `JSON.parse('{"frontmatter":{"which":"lean"},"relativePath":"team/qc.md"}')`)
	writeFile(t, filepath.Join(dist, "assets", "team_qc.md.BBBB.js"), `JSON.parse('{"frontmatter":{"which":"full"},"relativePath":"team/qc.md"}')`)

	meta, err := NewHostData(dist, nil).PageMetadata(context.Background(), Page{RelPath: "team/qc.html"})
	require.NoError(t, err)
	assert.Equal(t, "full", meta.Frontmatter["which"])
}

func TestHostData_Unavailable(t *testing.T) {
	_, err := NewHostData(t.TempDir(), nil).PageMetadata(context.Background(), Page{RelPath: "missing.html"})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestMetaTags(t *testing.T) {
	doc := docFrom(t, `<html><head>
<meta name="vp:lastUpdated" content="1732265191000">
<meta name="vp:newUntil" content="2099-01-01">
<meta name="vp:tags" content='["a","b"]'>
<meta name="description" content="ignored">
</head><body></body></html>`)

	meta, err := NewMetaTags().PageMetadata(context.Background(), Page{Doc: doc})
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1732265191000), meta.LastUpdated)
	assert.Equal(t, "2099-01-01", meta.Frontmatter["newUntil"])
	assert.Equal(t, []any{"a", "b"}, meta.Frontmatter["tags"])
	assert.NotContains(t, meta.Frontmatter, "description")
}

func TestMetaTags_Unavailable(t *testing.T) {
	doc := docFrom(t, `<html><head><meta name="description" content="x"></head></html>`)
	_, err := NewMetaTags().PageMetadata(context.Background(), Page{Doc: doc})
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = NewMetaTags().PageMetadata(context.Background(), Page{})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestMetaTags_MalformedLastUpdated(t *testing.T) {
	doc := docFrom(t, `<html><head><meta name="vp:lastUpdated" content="yesterday"></head></html>`)
	meta, err := NewMetaTags().PageMetadata(context.Background(), Page{Doc: doc})
	require.NoError(t, err)
	assert.True(t, meta.LastUpdated.IsZero())
	assert.Equal(t, "yesterday", meta.Frontmatter["lastUpdated"])
}

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    map[string]any
		wantErr bool
	}{
		{name: "none", doc: "# Title\n", want: map[string]any{}},
		{name: "simple", doc: "---\ntitle: Guide\nhotUntil: \"2099-01-01\"\n---\n# Guide ~hot\n", want: map[string]any{"title": "Guide", "hotUntil": "2099-01-01"}},
		{name: "crlf", doc: "---\r\ncomments: false\r\n---\r\nbody", want: map[string]any{"comments": false}},
		{name: "empty block", doc: "---\n---\nbody", want: map[string]any{}},
		{name: "thematic break only", doc: "--- not frontmatter\n", want: map[string]any{}},
		{name: "unterminated", doc: "---\ntitle: x\n", wantErr: true},
		{name: "invalid yaml", doc: "---\n: : :\n  - [\n---\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrontmatter([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceFrontmatter(t *testing.T) {
	src := t.TempDir()
	file := filepath.Join(src, "web", "guide.md")
	writeFile(t, file, "---\nnewUntil: \"2099-01-01\"\ntitle: Guide\n---\n# Guide ~new\n")
	modified := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(file, modified, modified))

	meta, err := NewSourceFrontmatter(src, nil).PageMetadata(context.Background(), Page{RelPath: "web/guide.html"})
	require.NoError(t, err)
	assert.True(t, modified.Equal(meta.LastUpdated))
	assert.Equal(t, "Guide", meta.Title)
	assert.Equal(t, "web/guide.md", meta.RelativePath)
	assert.Equal(t, "2099-01-01", meta.Frontmatter["newUntil"])
}

func TestSourceFrontmatter_Unavailable(t *testing.T) {
	_, err := NewSourceFrontmatter("", nil).PageMetadata(context.Background(), Page{RelPath: "a.html"})
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = NewSourceFrontmatter(t.TempDir(), nil).PageMetadata(context.Background(), Page{RelPath: "a.html"})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

type stubProvider struct {
	meta  models.PageMetadata
	err   error
	panic bool
}

func (s stubProvider) PageMetadata(ctx context.Context, page Page) (models.PageMetadata, error) {
	if s.panic {
		panic("boom")
	}
	return s.meta, s.err
}

func TestChain_MergesPerField(t *testing.T) {
	updated := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	chain := NewChain(quietLogger(),
		stubProvider{meta: models.PageMetadata{Source: "host-data", Frontmatter: map[string]any{"hotUntil": "2099-01-01"}}},
		stubProvider{meta: models.PageMetadata{Source: "meta-tags", Frontmatter: map[string]any{"other": 1}, LastUpdated: updated}},
	)

	meta := chain.Resolve(context.Background(), Page{RelPath: "a.html"})
	assert.Equal(t, map[string]any{"hotUntil": "2099-01-01"}, meta.Frontmatter)
	assert.Equal(t, updated, meta.LastUpdated)
	assert.Equal(t, "host-data+meta-tags", meta.Source)
	assert.Equal(t, "a.md", meta.RelativePath)
}

func TestChain_TotalFailureFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	var logs bytes.Buffer
	chain := NewChain(slog.New(slog.NewTextHandler(&logs, nil)),
		stubProvider{err: ErrUnavailable},
		stubProvider{err: errors.New("disk on fire")},
		stubProvider{panic: true},
	).WithClock(func() time.Time { return now })

	var meta models.PageMetadata
	var err error
	assert.NotPanics(t, func() {
		meta, err = chain.PageMetadata(context.Background(), Page{RelPath: "x.html"})
	})
	require.NoError(t, err)
	assert.Equal(t, now, meta.LastUpdated)
	assert.Empty(t, meta.Frontmatter)
	assert.NotNil(t, meta.Frontmatter)
	assert.Equal(t, "default", meta.Source)
	assert.Contains(t, logs.String(), "disk on fire")
	assert.Contains(t, logs.String(), "panicked")
}

func TestChain_NoProviders(t *testing.T) {
	meta := NewChain(quietLogger()).Resolve(context.Background(), Page{RelPath: "x.html"})
	assert.False(t, meta.LastUpdated.IsZero())
}
