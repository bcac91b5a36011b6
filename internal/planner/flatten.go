// Package planner turns outline nodes into plan items and buckets them by
// calendar day.
package planner

import (
	"strings"

	"github.com/starford/dayplanner/internal/models"
)

// LineOf renders a single node as "symbol [status] text". Plain list items
// without a checkbox render as "symbol text".
func LineOf(n *models.OutlineNode) string {
	return ListTokensOf(n) + n.Text
}

// ListTokensOf returns the marker/status prefix of n, kept verbatim so the
// item can be written back.
func ListTokensOf(n *models.OutlineNode) string {
	if !n.IsTask {
		return n.Symbol + " "
	}
	return n.Symbol + " [" + n.Status + "] "
}

// ownsTime reports whether a child is scheduled in its own right and so must
// not be folded into its parent.
func ownsTime(n *models.OutlineNode) bool {
	return n.Scheduled != nil || HasTimeToken(n.Text)
}

// Flatten renders root and its descendants as one text block, each level
// indented by one more tab. Children that carry their own schedule are left
// out together with their whole subtree.
//
// The tree must be acyclic.
func Flatten(root *models.OutlineNode) string {
	type frame struct {
		node  *models.OutlineNode
		depth int
	}

	var b strings.Builder
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b.WriteString(strings.Repeat("\t", f.depth))
		b.WriteString(LineOf(f.node))
		b.WriteByte('\n')

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			child := f.node.Children[i]
			if ownsTime(child) {
				continue
			}
			stack = append(stack, frame{node: child, depth: f.depth + 1})
		}
	}
	return b.String()
}
