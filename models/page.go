package models

import "time"

// Role is the place a marked element occupies on the page.
type Role string

const (
	RoleHeading Role = "heading" // content headings, full-size badge
	RoleOutline Role = "outline" // right-hand outline links, tiny badge
	RoleSidebar Role = "sidebar" // sidebar links, small badge
)

// Expiry rules, in the order they are tried.
const (
	RuleSpecificUntil = "specific-until"
	RulePolicyDays    = "policy-days"
)

// BadgeRecord is one marked element and the decision taken for it.
type BadgeRecord struct {
	Page      string    `json:"page" yaml:"page"`
	Role      Role      `json:"role" yaml:"role"`
	Title     string    `json:"title" yaml:"title"`
	Type      string    `json:"type" yaml:"type"`
	Visible   bool      `json:"visible" yaml:"visible"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
	Rule      string    `json:"rule" yaml:"rule"`
}

// PageResult is the outcome of processing one rendered page.
type PageResult struct {
	Path      string        `json:"path"`
	Badges    []BadgeRecord `json:"badges,omitempty"`
	Mutations int           `json:"mutations"`
	Written   bool          `json:"written"`
	Metadata  PageMetadata  `json:"metadata"`
	Error     error         `json:"-"`
	ErrorType string        `json:"error_type,omitempty"`
}

// Visible counts badges that are still shown.
func (r *PageResult) Visible() int {
	n := 0
	for _, b := range r.Badges {
		if b.Visible {
			n++
		}
	}
	return n
}
