package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/db"
	"github.com/agileteam/vpbadge/pkg/site"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// MaxTitleWidth is the display width titles are cut to in tables.
const MaxTitleWidth = 40

// ColorMode represents color output mode
type ColorMode int

const (
	// ColorAuto enables colors based on environment (default)
	ColorAuto ColorMode = iota
	// ColorAlways forces colors on
	ColorAlways
	// ColorNever forces colors off
	ColorNever
)

// ParseColorMode parses a string into a ColorMode
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors determines whether to use colors based on mode and environment
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

// Formatter renders domain values as table cells.
type Formatter struct {
	now     time.Time
	visible *color.Color
	expired *color.Color
	failed  *color.Color
}

// NewFormatter creates a formatter. Relative times are computed against now.
func NewFormatter(now time.Time, useColors bool) *Formatter {
	f := &Formatter{
		now:     now,
		visible: color.New(color.FgGreen),
		expired: color.New(color.FgHiBlack),
		failed:  color.New(color.FgRed),
	}
	for _, c := range []*color.Color{f.visible, f.expired, f.failed} {
		if useColors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// Truncate cuts s to width display columns, so CJK titles line up.
func Truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// State renders whether a badge is shown.
func (f *Formatter) State(visible bool) string {
	if visible {
		return f.visible.Sprint("shown")
	}
	return f.expired.Sprint("expired")
}

// Expiry renders an expiry time relative to now, e.g. "3 days from now".
func (f *Formatter) Expiry(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, f.now, "ago", "from now")
}

// BadgeRow renders one badge decision.
func (f *Formatter) BadgeRow(b models.BadgeRecord) []string {
	return []string{
		b.Page,
		string(b.Role),
		Truncate(b.Title, MaxTitleWidth),
		b.Type,
		f.State(b.Visible),
		f.Expiry(b.ExpiresAt),
		b.Rule,
	}
}

// WriteBadges renders badge decisions as a table.
func WriteBadges(w io.Writer, badges []models.BadgeRecord, f *Formatter) error {
	table := NewTable(w, []string{"Page", "Role", "Title", "Type", "State", "Expires", "Rule"})
	for _, b := range badges {
		table.AddRow(f.BadgeRow(b))
	}
	return table.Render()
}

// WriteRuns renders run history as a table.
func WriteRuns(w io.Writer, runs []db.Run, f *Formatter) error {
	table := NewTable(w, []string{"Run", "Trigger", "Started", "Pages", "Written", "Badges", "Shown", "Failed", "Duration"})
	for _, r := range runs {
		trigger := r.Trigger
		if r.DryRun {
			trigger += " (dry run)"
		}
		failed := strconv.Itoa(r.FailedCount)
		if r.FailedCount > 0 {
			failed = f.failed.Sprint(failed)
		}
		duration := "running"
		if !r.FinishedAt.IsZero() {
			duration = r.Duration().Round(time.Millisecond).String()
		}
		table.AddRow([]string{
			strconv.FormatInt(r.RunID, 10),
			trigger,
			humanize.RelTime(r.StartedAt, f.now, "ago", "from now"),
			strconv.Itoa(r.PageCount),
			strconv.Itoa(r.WrittenCount),
			strconv.Itoa(r.BadgeCount),
			strconv.Itoa(r.VisibleCount),
			failed,
			duration,
		})
	}
	return table.Render()
}

// WriteSummary prints the one-line totals of a scan.
func WriteSummary(w io.Writer, s site.Summary, f *Formatter) {
	failed := strconv.Itoa(s.Failed)
	if s.Failed > 0 {
		failed = f.failed.Sprint(failed)
	}
	_, _ = fmt.Fprintf(w, "%s: %s pages, %s markers (%s shown, %s expired), %s written, %s failed in %s\n",
		s.Trigger,
		humanize.Comma(int64(s.Pages)),
		humanize.Comma(int64(s.Matched)),
		f.visible.Sprint(s.Visible),
		f.expired.Sprint(s.Suppressed),
		humanize.Comma(int64(s.Written)),
		failed,
		s.Duration.Round(time.Millisecond))
}
