package badge

import (
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agileteam/vpbadge/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BadgeClass is the class every rendered badge carries. An element that
// already contains one is never annotated again.
const BadgeClass = "new-badge"

// Target is a group of elements scanned for markers, and the badge size
// modifier they receive.
type Target struct {
	Role      models.Role
	Selector  string
	SizeClass string
}

// Targets are scanned in order: content headings, outline links, sidebar links.
var Targets = []Target{
	{Role: models.RoleHeading, Selector: "h1, h2, h3, h4, h5, h6"},
	{Role: models.RoleOutline, Selector: ".VPDocOutline a, .outline-link, .VPDocOutlineItem a, .VPDocAside a", SizeClass: "new-badge-tiny"},
	{Role: models.RoleSidebar, Selector: ".VPSidebarItem .text, .sidebar-link, .vp-sidebar-link", SizeClass: "new-badge-small"},
}

// Found is one marked element discovered during a pass.
type Found struct {
	Marker   Marker
	Role     models.Role
	Decision Decision
}

// Result summarizes one annotation pass.
type Result struct {
	Found     []Found
	Mutations int
}

// Visible counts markers rendered with a badge.
func (r Result) Visible() int {
	n := 0
	for _, f := range r.Found {
		if f.Decision.Visible() {
			n++
		}
	}
	return n
}

// Suppressed counts expired markers that were stripped.
func (r Result) Suppressed() int {
	return len(r.Found) - r.Visible()
}

// Annotator applies a Policy to rendered pages.
type Annotator struct {
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithLogger sets the diagnostic logger. It is ignored when the policy
// disables logs.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Annotator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Annotator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnnotator creates an annotator for the given policy.
func NewAnnotator(policy Policy, opts ...Option) *Annotator {
	a := &Annotator{
		policy: policy,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if !policy.EnableLogs {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// Policy returns the annotator's policy.
func (a *Annotator) Policy() Policy {
	return a.policy
}

// Now returns the annotator's current time.
func (a *Annotator) Now() time.Time {
	return a.now()
}

// Annotate runs one full pass over doc. Every element whose text ends in a
// recognized marker is rewritten to its bare title, followed by a badge
// when the marker has not expired. Re-running on the output is a no-op.
func (a *Annotator) Annotate(doc *goquery.Document, meta models.PageMetadata) Result {
	var res Result
	now := a.now()

	a.logger.Info("Processing page markers",
		"page", meta.RelativePath,
		"last_updated", meta.LastUpdated,
		"metadata_source", meta.Source)

	for _, target := range Targets {
		doc.Find(target.Selector).Each(func(_ int, s *goquery.Selection) {
			if s.Find("." + BadgeClass).Length() > 0 {
				return
			}

			marker, ok := ParseMarker(s.Text())
			if !ok {
				return
			}

			decision := Decide(marker.Type, meta, a.policy, now)
			for _, key := range decision.Ignored {
				a.logger.Warn("Ignoring unparseable override date",
					"page", meta.RelativePath,
					"key", key,
					"value", meta.Value(key))
			}
			a.logger.Info("Marker decided",
				"page", meta.RelativePath,
				"role", target.Role,
				"title", marker.Title,
				"type", marker.Type,
				"rule", decision.Rule,
				"expires_at", decision.ExpiresAt,
				"expired", decision.Expired)

			render(s, marker, decision, target)
			res.Mutations++
			res.Found = append(res.Found, Found{
				Marker:   marker,
				Role:     target.Role,
				Decision: decision,
			})
		})
	}

	return res
}

// render replaces the element's content with the title and, when visible,
// a badge span.
func render(s *goquery.Selection, marker Marker, decision Decision, target Target) {
	s.Empty()
	s.AppendNodes(&html.Node{Type: html.TextNode, Data: marker.Title})
	if !decision.Visible() {
		return
	}
	s.AppendNodes(newBadgeNode(marker.Type, target.SizeClass))
}

func newBadgeNode(markerType, sizeClass string) *html.Node {
	classes := []string{BadgeClass, BadgeClass + "-" + markerType}
	if sizeClass != "" {
		classes = append(classes, sizeClass)
	}
	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: strings.Join(classes, " ")}},
	}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: strings.ToUpper(markerType)})
	return span
}
