// Package diagram implements the restricted flowchart grammar consumed by
// the renderer: a header line ("flowchart TD" or "graph TD"), node
// declarations (id["label"]) and directed edges (a --> b).
//
// [Parse] is lenient: it accepts the shapes and edge styles models commonly
// emit and ignores styling statements, but every [Diagram] it returns
// serialises back to the restricted form via [Diagram.String]. [Fallback]
// builds a linear chain without any model call, and [Dense] rejects model
// output too large to read.
package diagram

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNodes is the largest number of distinct nodes a diagram may hold.
const MaxNodes = 6

// Kind selects the diagram header keyword.
type Kind string

const (
	KindFlowchart Kind = "flowchart"
	KindGraph     Kind = "graph"
)

// DefaultDirection is used when a header names no direction.
const DefaultDirection = "TD"

var directions = map[string]bool{"TD": true, "TB": true, "BT": true, "LR": true, "RL": true}

var (
	// ErrNoHeader is returned when no line starts with flowchart or graph.
	ErrNoHeader = errors.New("diagram: no flowchart or graph header")
	// ErrTooManyNodes is returned when a diagram exceeds [MaxNodes].
	ErrTooManyNodes = errors.New("diagram: too many nodes")
	// ErrEmpty is returned when a diagram has a header but no nodes.
	ErrEmpty = errors.New("diagram: no nodes")
)

// Node is a diagram vertex. An empty Label renders as the bare ID.
type Node struct {
	ID    string
	Label string
}

// Edge is a directed connection between two node IDs.
type Edge struct {
	From  string
	To    string
	Label string
}

// Diagram is a parsed or constructed diagram.
type Diagram struct {
	Kind      Kind
	Direction string
	Nodes     []Node
	Edges     []Edge
}

// New returns an empty diagram of kind flowing top-down.
func New(kind Kind) *Diagram {
	if kind != KindGraph {
		kind = KindFlowchart
	}
	return &Diagram{Kind: kind, Direction: DefaultDirection}
}

// node returns the index of id in d.Nodes, or -1.
func (d *Diagram) node(id string) int {
	for i, n := range d.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// AddNode declares id, or sets its label when already present and label is
// not empty.
func (d *Diagram) AddNode(id, label string) {
	if i := d.node(id); i >= 0 {
		if label != "" {
			d.Nodes[i].Label = label
		}
		return
	}
	d.Nodes = append(d.Nodes, Node{ID: id, Label: label})
}

// AddEdge connects from to to, declaring either node when unknown.
func (d *Diagram) AddEdge(from, to, label string) {
	d.AddNode(from, "")
	d.AddNode(to, "")
	d.Edges = append(d.Edges, Edge{From: from, To: to, Label: label})
}

// Validate checks the node bound.
func (d *Diagram) Validate() error {
	if len(d.Nodes) == 0 {
		return ErrEmpty
	}
	if len(d.Nodes) > MaxNodes {
		return fmt.Errorf("%w: %d > %d", ErrTooManyNodes, len(d.Nodes), MaxNodes)
	}
	return nil
}

// String serialises d in the restricted grammar. Labels are always quoted
// with embedded quotes escaped as #quot;.
func (d *Diagram) String() string {
	var b strings.Builder
	dir := d.Direction
	if dir == "" {
		dir = DefaultDirection
	}
	kind := d.Kind
	if kind == "" {
		kind = KindFlowchart
	}
	b.WriteString(string(kind))
	b.WriteByte(' ')
	b.WriteString(dir)

	for _, n := range d.Nodes {
		if n.Label == "" {
			continue
		}
		fmt.Fprintf(&b, "\n    %s[\"%s\"]", n.ID, EscapeLabel(n.Label))
	}
	for _, e := range d.Edges {
		if e.Label != "" {
			fmt.Fprintf(&b, "\n    %s -->|\"%s\"| %s", e.From, EscapeLabel(e.Label), e.To)
			continue
		}
		fmt.Fprintf(&b, "\n    %s --> %s", e.From, e.To)
	}
	return b.String()
}

// EscapeLabel replaces double quotes, which would end a quoted label, with
// the #quot; entity.
func EscapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, quotEntity)
}

// unescapeLabel reverses [EscapeLabel].
func unescapeLabel(s string) string {
	return strings.ReplaceAll(s, quotEntity, `"`)
}

const quotEntity = "#quot;"

// ignoredPrefixes start lines that carry styling or grouping only.
var ignoredPrefixes = []string{
	"style ", "classdef ", "class ", "linkstyle ", "click ",
	"subgraph ", "direction ", "%%",
}

// Parse reads a diagram from src. Lines before the first header line and
// fence lines are skipped; lines that are neither a node declaration nor an
// edge chain are ignored. Parse fails with [ErrNoHeader], [ErrEmpty] or
// [ErrTooManyNodes].
func Parse(src string) (*Diagram, error) {
	lines := strings.Split(src, "\n")
	var d *Diagram
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if d == nil {
			d = parseHeader(line)
			continue
		}
		lower := strings.ToLower(line)
		if ignored(lower) {
			continue
		}
		for _, stmt := range splitStatements(line) {
			parseStatement(d, stmt)
		}
	}
	if d == nil {
		return nil, ErrNoHeader
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func ignored(lower string) bool {
	if lower == "end" || lower == "subgraph" {
		return true
	}
	for _, p := range ignoredPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// splitStatements cuts line at semicolons that sit outside quotes, shape
// brackets and |edge labels|, trimming each statement.
func splitStatements(line string) []string {
	var (
		out            []string
		start, depth   int
		inQuote, inBar bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '|' && depth == 0:
			inBar = !inBar
		case inBar:
		case c == '[' || c == '(' || c == '{':
			depth++
		case c == ']' || c == ')' || c == '}':
			if depth > 0 {
				depth--
			}
		case c == ';' && depth == 0:
			out = append(out, strings.TrimSpace(line[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(line[start:]))
}

// parseHeader returns a diagram for a header line, or nil when line is not
// one. A header may carry statements after a semicolon.
func parseHeader(line string) *Diagram {
	stmts := splitStatements(line)
	fields := strings.Fields(stmts[0])
	if len(fields) == 0 {
		return nil
	}
	var kind Kind
	switch strings.ToLower(fields[0]) {
	case "flowchart":
		kind = KindFlowchart
	case "graph":
		kind = KindGraph
	default:
		return nil
	}
	d := New(kind)
	if len(fields) > 1 {
		if dir := strings.ToUpper(fields[1]); directions[dir] {
			d.Direction = dir
		}
	}
	for _, stmt := range stmts[1:] {
		parseStatement(d, stmt)
	}
	return d
}

// parseStatement applies one node declaration or edge chain to d. A
// statement that does not parse completely leaves d untouched.
func parseStatement(d *Diagram, stmt string) {
	if stmt == "" {
		return
	}
	s := &scanner{src: stmt}
	type decl struct{ id, label string }
	var nodes []decl
	var edges []Edge

	id, label, ok := s.nodeRef()
	if !ok {
		return
	}
	nodes = append(nodes, decl{id, label})
	prev := id
	for {
		s.skipSpace()
		if s.done() {
			break
		}
		edgeLabel, ok := s.arrow()
		if !ok {
			return
		}
		s.skipSpace()
		id, label, ok := s.nodeRef()
		if !ok {
			return
		}
		nodes = append(nodes, decl{id, label})
		edges = append(edges, Edge{From: prev, To: id, Label: edgeLabel})
		prev = id
	}

	for _, n := range nodes {
		d.AddNode(n.id, n.label)
	}
	for _, e := range edges {
		d.AddEdge(e.From, e.To, e.Label)
	}
}
