package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agileteam/vpbadge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guidePage = `<!DOCTYPE html>
<html><head><meta name="vp:lastUpdated" content="1754740800000"></head>
<body><div class="VPSidebarItem"><p class="text">Guide ~new</p></div>
<main><h1>Guide ~new</h1><h2>Old API ~beta</h2></main></body></html>`

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	require.NoError(t, app.Run(append([]string{"vpbadge", "--log-level", "error", "--color", "never"}, args...)))
	return out.String()
}

func newSite(t *testing.T) string {
	t.Helper()
	dist := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "web"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "web", "guide.html"), []byte(guidePage), 0644))
	return dist
}

func TestAnnotateCommand(t *testing.T) {
	dist := newSite(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	out := runApp(t, "annotate", "--dist", dist, "--db", dbPath, "--now", "2025-08-10")
	assert.Contains(t, out, "manual: 1 pages, 3 markers (3 shown, 0 expired), 1 written, 0 failed")

	data, err := os.ReadFile(filepath.Join(dist, "web", "guide.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `<h1>Guide<span class="new-badge new-badge-new">NEW</span></h1>`)
	assert.Contains(t, string(data), `new-badge-beta`)

	// a second pass finds nothing left to do
	out = runApp(t, "annotate", "--dist", dist, "--db", dbPath, "--now", "2025-08-10")
	assert.Contains(t, out, "0 markers")

	out = runApp(t, "history", "--db", dbPath)
	assert.Contains(t, out, "Total: 2 runs")

	out = runApp(t, "history", "show", "--db", dbPath, "1")
	assert.Contains(t, out, "web/guide.html")
	assert.Contains(t, out, "policy-days")
}

func TestAnnotateCommand_ExpiredAndDryRun(t *testing.T) {
	dist := newSite(t)
	before, err := os.ReadFile(filepath.Join(dist, "web", "guide.html"))
	require.NoError(t, err)

	// 40 days after the last update: new (30) expired, beta (60) still shown
	out := runApp(t, "annotate", "--dist", dist, "--no-history", "--dry-run", "--now", "2025-09-18")
	assert.Contains(t, out, "3 markers (1 shown, 2 expired), 0 written")

	after, err := os.ReadFile(filepath.Join(dist, "web", "guide.html"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestReportCommand(t *testing.T) {
	dist := newSite(t)

	out := runApp(t, "report", "--dist", dist, "--now", "2025-09-18", "--expired")
	assert.Contains(t, out, "expired")
	assert.NotContains(t, out, "Old API")
	assert.Equal(t, 2, strings.Count(out, "web/guide.html"))
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpbadge.yaml")

	out := runApp(t, "config", "init", "--path", path)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := models.LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Badges.DefaultExpireDays)
	assert.Equal(t, 30, *cfg.Badges.DefaultExpireDays)
	assert.Equal(t, 14, cfg.Badges.BadgeTypes["hot"])

	out = runApp(t, "--config", path, "config", "show")
	assert.Contains(t, out, "updated  21 days")
}
