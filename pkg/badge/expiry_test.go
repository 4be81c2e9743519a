package badge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/agileteam/vpbadge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

func TestDecide_SpecificUntil(t *testing.T) {
	policy := DefaultPolicy()

	for _, typ := range Types {
		t.Run(typ+" future", func(t *testing.T) {
			meta := models.PageMetadata{
				Frontmatter: map[string]any{UntilKey(typ): "2099-01-01"},
				LastUpdated: testNow.AddDate(-1, 0, 0),
			}
			d := Decide(typ, meta, policy, testNow)
			assert.False(t, d.Expired)
			assert.Equal(t, models.RuleSpecificUntil, d.Rule)
		})
		t.Run(typ+" past", func(t *testing.T) {
			meta := models.PageMetadata{
				Frontmatter: map[string]any{UntilKey(typ): "2020-01-01"},
				LastUpdated: testNow,
			}
			d := Decide(typ, meta, policy, testNow)
			assert.True(t, d.Expired)
			assert.Equal(t, models.RuleSpecificUntil, d.Rule)
		})
	}
}

func TestDecide_OverrideForOtherTypeIgnored(t *testing.T) {
	meta := models.PageMetadata{
		Frontmatter: map[string]any{"newUntil": "2020-01-01"},
		LastUpdated: testNow,
	}
	d := Decide(TypeHot, meta, DefaultPolicy(), testNow)
	assert.False(t, d.Expired)
	assert.Equal(t, models.RulePolicyDays, d.Rule)
}

func TestDecide_HotUntilScenario(t *testing.T) {
	meta := models.PageMetadata{
		Frontmatter: map[string]any{"hotUntil": "2099-01-01"},
		LastUpdated: testNow.AddDate(-5, 0, 0),
	}
	d := Decide(TypeHot, meta, DefaultPolicy(), testNow)
	assert.True(t, d.Visible())
	assert.Equal(t, time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC), d.ExpiresAt)
}

func TestDecide_PolicyDays(t *testing.T) {
	days := 30
	policy := MergePolicy(&models.PolicyOverrides{BadgeTypes: map[string]int{"new": days}})

	tests := []struct {
		name        string
		lastUpdated time.Time
		wantExpired bool
	}{
		{name: "40 days ago", lastUpdated: testNow.AddDate(0, 0, -40), wantExpired: true},
		{name: "10 days ago", lastUpdated: testNow.AddDate(0, 0, -10), wantExpired: false},
		{name: "exactly at boundary", lastUpdated: testNow.AddDate(0, 0, -30), wantExpired: false},
		{name: "one second past boundary", lastUpdated: testNow.AddDate(0, 0, -30).Add(-time.Second), wantExpired: true},
		{name: "unknown last updated", lastUpdated: time.Time{}, wantExpired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(TypeNew, models.PageMetadata{LastUpdated: tt.lastUpdated}, policy, testNow)
			assert.Equal(t, tt.wantExpired, d.Expired)
			assert.Equal(t, models.RulePolicyDays, d.Rule)
		})
	}
}

func TestDecide_VisibilityMatchesPolicyWindow(t *testing.T) {
	policy := DefaultPolicy()
	for _, typ := range Types {
		for offset := -70; offset <= 0; offset += 7 {
			modified := testNow.AddDate(0, 0, offset)
			d := Decide(typ, models.PageMetadata{LastUpdated: modified}, policy, testNow)
			want := !testNow.After(modified.AddDate(0, 0, policy.Days(typ)))
			assert.Equal(t, want, d.Visible(), "type=%s offset=%d", typ, offset)
		}
	}
}

func TestDecide_BoundaryOnOverride(t *testing.T) {
	meta := models.PageMetadata{Frontmatter: map[string]any{"betaUntil": testNow.Format(time.RFC3339)}}
	d := Decide(TypeBeta, meta, DefaultPolicy(), testNow)
	assert.False(t, d.Expired, "badge stays visible at the exact expiry instant")
}

func TestDecide_MalformedOverrideFallsThrough(t *testing.T) {
	meta := models.PageMetadata{
		Frontmatter: map[string]any{"updatedUntil": "not a date"},
		LastUpdated: testNow.AddDate(0, 0, -30),
	}
	d := Decide(TypeUpdated, meta, DefaultPolicy(), testNow)
	assert.True(t, d.Expired, "updated expires after 21 days")
	assert.Equal(t, models.RulePolicyDays, d.Rule)
	assert.Equal(t, []string{"updatedUntil"}, d.Ignored)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   time.Time
		wantOK bool
	}{
		{name: "iso date", in: "2099-01-01", want: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "rfc3339", in: "2025-09-01T08:00:00+08:00", want: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "slash date", in: "2025/09/01", want: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "time value", in: testNow, want: testNow, wantOK: true},
		{name: "epoch ms int64", in: int64(1732265191000), want: time.UnixMilli(1732265191000), wantOK: true},
		{name: "epoch ms float", in: float64(1732265191000), want: time.UnixMilli(1732265191000), wantOK: true},
		{name: "json number", in: json.Number("1732265191000"), want: time.UnixMilli(1732265191000), wantOK: true},
		{name: "garbage", in: "soon", wantOK: false},
		{name: "empty", in: "  ", wantOK: false},
		{name: "bool", in: true, wantOK: false},
		{name: "zero time", in: time.Time{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			}
		})
	}
}
