package badge

import (
	"maps"
	"slices"

	"github.com/agileteam/vpbadge/models"
)

// Built-in expiry defaults in days.
const (
	DefaultExpireDays  = 30
	DefaultNewDays     = 30
	DefaultUpdatedDays = 21
	DefaultHotDays     = 14
	DefaultBetaDays    = 60
)

// Policy maps marker types to how long their badge stays visible.
type Policy struct {
	DefaultExpireDays int
	BadgeTypes        map[string]int
	EnableLogs        bool
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		DefaultExpireDays: DefaultExpireDays,
		BadgeTypes: map[string]int{
			TypeNew:     DefaultNewDays,
			TypeUpdated: DefaultUpdatedDays,
			TypeHot:     DefaultHotDays,
			TypeBeta:    DefaultBetaDays,
		},
		EnableLogs: true,
	}
}

// MergePolicy lays the overrides over DefaultPolicy. BadgeTypes merge per key.
func MergePolicy(o *models.PolicyOverrides) Policy {
	p := DefaultPolicy()
	if o == nil {
		return p
	}
	if o.DefaultExpireDays != nil && *o.DefaultExpireDays > 0 {
		p.DefaultExpireDays = *o.DefaultExpireDays
	}
	maps.Copy(p.BadgeTypes, o.BadgeTypes)
	if o.EnableLogs != nil {
		p.EnableLogs = *o.EnableLogs
	}
	return p
}

// Days returns the expiry window for a marker type. Unknown types and
// non-positive entries use DefaultExpireDays.
func (p Policy) Days(markerType string) int {
	if d, ok := p.BadgeTypes[markerType]; ok && d > 0 {
		return d
	}
	if p.DefaultExpireDays > 0 {
		return p.DefaultExpireDays
	}
	return DefaultExpireDays
}

// TypeNames returns the policy's configured types, sorted.
func (p Policy) TypeNames() []string {
	return slices.Sorted(maps.Keys(p.BadgeTypes))
}
