package models

// TriggerKind names the event that caused a scan.
type TriggerKind string

const (
	// TriggerInitialLoad is the first pass once the document root is ready.
	TriggerInitialLoad TriggerKind = "initial-load"
	// TriggerNavigationChanged fires when a rendered page appears or is rewritten.
	TriggerNavigationChanged TriggerKind = "navigation-changed"
	// TriggerContentMutated fires when page data changes under an existing page.
	TriggerContentMutated TriggerKind = "content-mutated"
	// TriggerManual is a one-shot scan started from the CLI.
	TriggerManual TriggerKind = "manual"
)

// Trigger requests a scan. An empty Pages list means every page.
type Trigger struct {
	Kind  TriggerKind
	Pages []string
}

// AllPages reports whether the trigger covers the whole site.
func (t Trigger) AllPages() bool {
	return len(t.Pages) == 0
}
