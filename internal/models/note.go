// Package models defines the domain types shared between the vault, the index
// and the planner.
package models

import "time"

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location points back at the note line an item was read from. It does not
// own the note: the file may change or disappear and the location simply
// becomes stale.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"` // 0-based file line
}

// OutlineNode is one Markdown list item and its nested items.
type OutlineNode struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Symbol string `json:"symbol"`           // list marker, e.g. "-" or "1."
	Status string `json:"status,omitempty"` // checkbox state, e.g. " " or "x"
	IsTask bool   `json:"is_task"`          // true when the item carries a checkbox
	Text   string `json:"text"`

	// Scheduled is the explicit scheduled date, if any, at local midnight.
	Scheduled *time.Time `json:"scheduled,omitempty"`

	Children []*OutlineNode `json:"children,omitempty"`
}

// Location returns the node's source location.
func (n *OutlineNode) Location() Location {
	return Location{Path: n.Path, Line: n.Line}
}

// Walk visits n and every descendant in document order.
func (n *OutlineNode) Walk(fn func(*OutlineNode)) {
	stack := []*OutlineNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cur)
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}
