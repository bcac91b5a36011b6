// Package outline reads Markdown notes into trees of list items.
package outline

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/dayplanner/internal/models"
	"github.com/starford/dayplanner/internal/timeutil"
)

var (
	listItemRe  = regexp.MustCompile(`^([ \t]*)([-*+]|\d+[.)])(?:[ \t]+|$)(?:\[(.)\](?:[ \t]+|$))?(.*)$`)
	headingRe   = regexp.MustCompile(`^#{1,6}(?:\s|$)`)
	fenceRe     = regexp.MustCompile("^[ \t]*(```|~~~)")
	scheduledRe = regexp.MustCompile(`⏳\s*(\d{4}-\d{2}-\d{2})|[\[(]scheduled::\s*(\d{4}-\d{2}-\d{2})[\])]`)
)

const tabWidth = 4

// Result holds the output of parsing a Markdown note.
type Result struct {
	Frontmatter map[string]any
	Title       string
	Roots       []*models.OutlineNode
}

// Nodes returns every list item of the note in document order.
func (r *Result) Nodes() []*models.OutlineNode {
	var out []*models.OutlineNode
	for _, root := range r.Roots {
		root.Walk(func(n *models.OutlineNode) { out = append(out, n) })
	}
	return out
}

// Parse reads frontmatter and list items from raw Markdown. Scheduled dates
// are interpreted in the local time zone.
func Parse(path string, data []byte) (*Result, error) {
	return ParseInLocation(path, data, time.Local)
}

// ParseInLocation is like Parse but interprets scheduled dates in loc.
func ParseInLocation(path string, data []byte, loc *time.Location) (*Result, error) {
	fm, body := splitFrontmatter(data)
	firstLine := bytes.Count(data[:len(data)-len(body)], []byte("\n"))

	return &Result{
		Frontmatter: fm,
		Title:       deriveTitle(path, fm, body),
		Roots:       buildTree(path, body, firstLine, loc),
	}, nil
}

type frame struct {
	indent int
	node   *models.OutlineNode
}

// buildTree nests list items by indentation. Headings, fenced code and
// unindented prose end the current list.
func buildTree(path, body string, firstLine int, loc *time.Location) []*models.OutlineNode {
	var (
		roots   []*models.OutlineNode
		stack   []frame
		inFence bool
	)
	for i, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")

		if fenceRe.MatchString(line) {
			inFence = !inFence
			stack = stack[:0]
			continue
		}
		if inFence {
			continue
		}
		if headingRe.MatchString(line) {
			stack = stack[:0]
			continue
		}

		m := listItemRe.FindStringSubmatch(line)
		if m == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			// Indented prose continues the current item.
			if len(stack) > 0 && indentWidth(leadingSpace(line)) > stack[len(stack)-1].indent {
				continue
			}
			stack = stack[:0]
			continue
		}

		indent := indentWidth(m[1])
		text, scheduled := extractScheduled(m[4], loc)
		node := &models.OutlineNode{
			Path:      path,
			Line:      firstLine + i,
			Symbol:    m[2],
			Status:    m[3],
			IsTask:    m[3] != "",
			Text:      text,
			Scheduled: scheduled,
		}

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1].node
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, frame{indent: indent, node: node})
	}
	return roots
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func indentWidth(ws string) int {
	n := 0
	for _, r := range ws {
		if r == '\t' {
			n += tabWidth
		} else {
			n++
		}
	}
	return n
}

// extractScheduled removes a scheduled-date marker from text and returns the
// date at local midnight.
func extractScheduled(text string, loc *time.Location) (string, *time.Time) {
	m := scheduledRe.FindStringSubmatchIndex(text)
	if m == nil {
		return strings.TrimSpace(text), nil
	}
	raw := ""
	for g := 1; g <= 2; g++ {
		if m[2*g] >= 0 {
			raw = text[m[2*g]:m[2*g+1]]
		}
	}
	day, err := timeutil.ParseDayKey(raw, loc)
	if err != nil {
		// Not a real date: leave the text alone.
		return strings.TrimSpace(text), nil
	}
	stripped := text[:m[0]] + text[m[1]:]
	return strings.Join(strings.Fields(stripped), " "), &day
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. The body is always a suffix of data.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	// Drop the remainder of the closing delimiter line only.
	if nl := bytes.IndexByte(afterDelim, '\n'); nl >= 0 {
		afterDelim = afterDelim[nl+1:]
	} else {
		afterDelim = afterDelim[len(afterDelim):]
	}

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, string(afterDelim)
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise the file name without extension.
func deriveTitle(path string, fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
