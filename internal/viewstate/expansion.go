// Package viewstate holds small pieces of presentation state that API
// consumers round-trip, such as which browse card is expanded.
package viewstate

// Expansion tracks which dataset card is expanded in a listing. At most
// one card is expanded at a time; expanding another collapses the
// previous one.
type Expansion struct {
	expandedID string
}

// Toggle flips the expansion state for id. Toggling the currently
// expanded card collapses it; toggling any other card moves the
// expansion there.
func (e *Expansion) Toggle(id string) {
	if e.expandedID == id {
		e.expandedID = ""
		return
	}
	e.expandedID = id
}

// Collapse clears any expansion.
func (e *Expansion) Collapse() {
	e.expandedID = ""
}

// Expanded reports whether the given card is the expanded one.
func (e *Expansion) Expanded(id string) bool {
	return id != "" && e.expandedID == id
}

// ExpandedID returns the expanded card's id, or empty when all cards
// are collapsed.
func (e *Expansion) ExpandedID() string {
	return e.expandedID
}
