package badge

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agileteam/vpbadge/models"
	"github.com/araddon/dateparse"
)

// UntilKey returns the frontmatter key that overrides expiry for one marker type.
func UntilKey(markerType string) string {
	return markerType + "Until"
}

// Decision is the computed visibility of one marker.
type Decision struct {
	Type      string
	Expired   bool
	ExpiresAt time.Time
	Rule      string
	// Ignored lists override keys present in frontmatter but not parseable as a date.
	Ignored []string
}

// Visible reports whether the badge should be shown.
func (d Decision) Visible() bool {
	return !d.Expired
}

// Decide applies the expiry rules in priority order: a "<type>Until"
// override (for new markers that is newUntil itself), then LastUpdated plus
// the policy's days. A badge is expired only when now is strictly after the
// expiry instant. A zero LastUpdated counts as now.
func Decide(markerType string, meta models.PageMetadata, policy Policy, now time.Time) Decision {
	d := Decision{Type: markerType}

	specificKey := UntilKey(markerType)
	if raw := meta.Value(specificKey); raw != nil {
		if until, ok := ParseDate(raw); ok {
			d.Rule = models.RuleSpecificUntil
			d.ExpiresAt = until
			d.Expired = now.After(until)
			return d
		}
		d.Ignored = append(d.Ignored, specificKey)
	}

	modified := meta.LastUpdated
	if modified.IsZero() {
		modified = now
	}
	d.Rule = models.RulePolicyDays
	d.ExpiresAt = modified.AddDate(0, 0, policy.Days(markerType))
	d.Expired = now.After(d.ExpiresAt)
	return d
}

// ParseDate converts a frontmatter value into a time. Strings go through
// dateparse (UTC when no zone is given), numbers are epoch milliseconds.
func ParseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	case int:
		return time.UnixMilli(int64(val)), true
	case int64:
		return time.UnixMilli(val), true
	case float64:
		return time.UnixMilli(int64(val)), true
	}
	return time.Time{}, false
}
