// Package badge turns trailing "~new" style markers in headings and navigation
// links into time-limited badges.
package badge

import (
	"regexp"
	"strings"
)

// Recognized marker types.
const (
	TypeNew     = "new"
	TypeUpdated = "updated"
	TypeHot     = "hot"
	TypeBeta    = "beta"
)

// Types lists every recognized marker type.
var Types = []string{TypeNew, TypeUpdated, TypeHot, TypeBeta}

var (
	markerRe = regexp.MustCompile(`(?i)^(.*?)\s*~(new|updated|hot|beta)\s*$`)

	// zero-width space/joiners, BOM and no-break space
	invisibleReplacer = strings.NewReplacer(
		"\u200b", "",
		"\u200c", "",
		"\u200d", "",
		"\ufeff", "",
		"\u00a0", "",
	)
)

// Marker is a parsed "<title> ~<type>" label.
type Marker struct {
	Raw   string // cleaned text the pattern was matched against
	Title string
	Type  string // lowercased
}

// CleanText strips invisible characters and surrounding whitespace.
func CleanText(text string) string {
	return strings.TrimSpace(invisibleReplacer.Replace(text))
}

// ParseMarker reports whether text ends with a recognized marker.
func ParseMarker(text string) (Marker, bool) {
	cleaned := CleanText(text)
	m := markerRe.FindStringSubmatch(cleaned)
	if m == nil {
		return Marker{}, false
	}
	return Marker{
		Raw:   cleaned,
		Title: strings.TrimSpace(m[1]),
		Type:  strings.ToLower(m[2]),
	}, true
}

// IsRecognized reports whether t is one of the marker types.
func IsRecognized(t string) bool {
	t = strings.ToLower(t)
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}
