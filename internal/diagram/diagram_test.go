package diagram

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

// ── Fallback ──────────────────────────────────────────────────────────────────

func TestFallback_PlantsChain(t *testing.T) {
	t.Parallel()

	d := Fallback(KindFlowchart, "Plants use sunlight to make food",
		[]string{"Leaves absorb light", "Roots absorb water"})
	if d == nil {
		t.Fatal("Fallback returned nil")
	}
	if len(d.Nodes) != 3 {
		t.Fatalf("nodes=%d, want 3", len(d.Nodes))
	}
	for i, want := range []string{"N0", "N1", "N2"} {
		if d.Nodes[i].ID != want {
			t.Errorf("node %d id=%q, want %q", i, d.Nodes[i].ID, want)
		}
		if n := utf8.RuneCountInString(d.Nodes[i].Label); n > MaxLabelRunes {
			t.Errorf("node %d label has %d runes", i, n)
		}
	}
	wantEdges := []Edge{{From: "N0", To: "N1"}, {From: "N1", To: "N2"}}
	if len(d.Edges) != len(wantEdges) {
		t.Fatalf("edges=%v, want %v", d.Edges, wantEdges)
	}
	for i, e := range wantEdges {
		if d.Edges[i] != e {
			t.Errorf("edge %d=%v, want %v", i, d.Edges[i], e)
		}
	}

	want := "flowchart TD\n" +
		"    N0[\"Plants use sunlight to make food\"]\n" +
		"    N1[\"Leaves absorb light\"]\n" +
		"    N2[\"Roots absorb water\"]\n" +
		"    N0 --> N1\n" +
		"    N1 --> N2"
	if got := d.String(); got != want {
		t.Errorf("String()=\n%s\nwant\n%s", got, want)
	}
}

func TestFallback_GraphHeader(t *testing.T) {
	t.Parallel()

	d := Fallback(KindGraph, "Prices went up", nil)
	if !strings.HasPrefix(d.String(), "graph TD\n") {
		t.Errorf("String()=%q, want graph header", d.String())
	}
}

func TestFallback_DedupSkipAndCap(t *testing.T) {
	t.Parallel()

	d := Fallback(KindFlowchart, "  Water  boils ",
		[]string{"water boils", "", "  ", "A", "B", "a", "C", "D", "E"})
	var labels []string
	for _, n := range d.Nodes {
		labels = append(labels, n.Label)
	}
	want := []string{"Water boils", "A", "B", "C", "D"}
	if strings.Join(labels, "|") != strings.Join(want, "|") {
		t.Errorf("labels=%q, want %q", labels, want)
	}
	if len(d.Nodes) > MaxNodes {
		t.Errorf("nodes=%d exceeds MaxNodes", len(d.Nodes))
	}
}

func TestFallback_NoText(t *testing.T) {
	t.Parallel()

	if d := Fallback(KindFlowchart, "   ", []string{"", "\t"}); d != nil {
		t.Errorf("Fallback=%v, want nil", d)
	}
}

func TestFallback_KeyPointsOnly(t *testing.T) {
	t.Parallel()

	d := Fallback(KindFlowchart, "", []string{"First idea", "Second idea"})
	if d == nil || len(d.Nodes) != 2 || d.Nodes[0].ID != "N0" {
		t.Fatalf("Fallback=%v, want N0 --> N1", d)
	}
}

func TestFallback_EscapesQuotes(t *testing.T) {
	t.Parallel()

	d := Fallback(KindFlowchart, `She said "stop" twice`, nil)
	got := d.String()
	if !strings.Contains(got, `N0["She said #quot;stop#quot; twice"]`) {
		t.Errorf("String()=%q, want escaped quotes", got)
	}
	if d.Nodes[0].Label != `She said "stop" twice` {
		t.Errorf("label=%q, escaping belongs to serialisation", d.Nodes[0].Label)
	}
}

func TestTruncateLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Roots absorb water", "Roots absorb water"},
		{"eight words", "one two three four five six seven eight", "one two three four five six seven eight"},
		{"nine words", "one two three four five six seven eight nine", "one two three four five six seven eight…"},
		{"long words", "Photosynthesisization internationalization counterrevolutionaries", "Photosynthesisization internationalization counterrevol…"},
		{"punctuation only", strings.Repeat("-", 60), strings.Repeat("-", MaxLabelRunes-1) + "…"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := TruncateLabel(tc.in)
			if got != tc.want {
				t.Errorf("TruncateLabel(%q)=%q, want %q", tc.in, got, tc.want)
			}
			if n := utf8.RuneCountInString(got); n > MaxLabelRunes {
				t.Errorf("label has %d runes, want <= %d", n, MaxLabelRunes)
			}
			if n := len(strings.Fields(strings.TrimSuffix(got, "…"))); n > MaxLabelWords {
				t.Errorf("label has %d words, want <= %d", n, MaxLabelWords)
			}
		})
	}
}

// ── Dense ─────────────────────────────────────────────────────────────────────

func TestDense(t *testing.T) {
	t.Parallel()

	small := Fallback(KindFlowchart, "Plants use sunlight", []string{"Leaves absorb light"}).String()
	longLabel := "flowchart TD\n    A[\"" + strings.Repeat("x", 91) + "\"]"
	okLabel := "flowchart TD\n    A[\"" + strings.Repeat("x", 90) + "\"]"
	huge := "flowchart TD\n" + strings.Repeat("    A --> B\n", 200)

	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"small", small, false},
		{"label at limit", okLabel, false},
		{"label over limit", longLabel, true},
		{"too long", huge, true},
	}
	for _, tc := range tests {
		if got := Dense(tc.src, DefaultLimits); got != tc.want {
			t.Errorf("%s: Dense=%v, want %v", tc.name, got, tc.want)
		}
	}
	if !Dense(small, Limits{MaxChars: 10}) {
		t.Error("custom MaxChars not honoured")
	}
}

// ── Parse ─────────────────────────────────────────────────────────────────────

func TestParse_ModelOutput(t *testing.T) {
	t.Parallel()

	src := "Here is your diagram:\n```mermaid\nflowchart LR\n" +
		"    A[\"Sunlight\"] --> B(Leaves)\n" +
		"    B -->|make| C{{Sugar}}\n" +
		"    C -- feeds --> D\n" +
		"    style A fill:#fff\n" +
		"    classDef big font-size:20px;\n" +
		"```\nHope this helps!"
	d, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Kind != KindFlowchart || d.Direction != "LR" {
		t.Errorf("header=%s %s, want flowchart LR", d.Kind, d.Direction)
	}
	if len(d.Nodes) != 4 {
		t.Fatalf("nodes=%v, want 4", d.Nodes)
	}
	wantLabels := map[string]string{"A": "Sunlight", "B": "Leaves", "C": "Sugar", "D": ""}
	for _, n := range d.Nodes {
		if wantLabels[n.ID] != n.Label {
			t.Errorf("node %s label=%q, want %q", n.ID, n.Label, wantLabels[n.ID])
		}
	}
	if len(d.Edges) != 3 || d.Edges[1].Label != "make" || d.Edges[2].Label != "feeds" {
		t.Errorf("edges=%+v", d.Edges)
	}
}

func TestParse_ChainAndSemicolons(t *testing.T) {
	t.Parallel()

	d, err := Parse("graph TD; A-->B-->C; C --> A")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Nodes) != 3 || len(d.Edges) != 3 {
		t.Errorf("nodes=%d edges=%d, want 3 and 3", len(d.Nodes), len(d.Edges))
	}
	if d.Kind != KindGraph || d.Direction != "TD" {
		t.Errorf("header=%s %s", d.Kind, d.Direction)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tooMany := "flowchart TD\n A-->B\n B-->C\n C-->D\n D-->E\n E-->F\n F-->G"
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"no header", "A --> B", ErrNoHeader},
		{"none sentinel", "NONE", ErrNoHeader},
		{"empty body", "flowchart TD\n", ErrEmpty},
		{"seven nodes", tooMany, ErrTooManyNodes},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse(tc.src); !errors.Is(err, tc.want) {
				t.Errorf("Parse err=%v, want %v", err, tc.want)
			}
		})
	}
}

func TestParse_IgnoresBrokenStatements(t *testing.T) {
	t.Parallel()

	d, err := Parse("flowchart TD\n A[\"ok\"] --> B\n C[\"unterminated --> D\n This line is prose.\n end")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Nodes) != 2 {
		t.Errorf("nodes=%+v, want only A and B", d.Nodes)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	orig := Fallback(KindFlowchart, `A "quoted" idea`, []string{"Second", "Third"})
	d, err := Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.String() != orig.String() {
		t.Errorf("round trip changed diagram:\n%s\nvs\n%s", d.String(), orig.String())
	}
}

func TestParse_SemicolonInsideLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		src       string
		wantNodes []Node
		wantEdges []Edge
	}{
		{
			name: "quoted node label",
			src:  "flowchart TD\n A[\"Mix flour; add water\"] --> B[\"Knead dough\"]\n B --> C[\"Bake it\"]",
			wantNodes: []Node{
				{ID: "A", Label: "Mix flour; add water"},
				{ID: "B", Label: "Knead dough"},
				{ID: "C", Label: "Bake it"},
			},
			wantEdges: []Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
		},
		{
			name:      "unquoted shape label",
			src:       "graph LR; A(wait; then go) --> B",
			wantNodes: []Node{{ID: "A", Label: "wait; then go"}, {ID: "B"}},
			wantEdges: []Edge{{From: "A", To: "B"}},
		},
		{
			name:      "edge label",
			src:       "flowchart TD\n A -->|\"yes; really\"| B; B --> C",
			wantNodes: []Node{{ID: "A"}, {ID: "B"}, {ID: "C"}},
			wantEdges: []Edge{{From: "A", To: "B", Label: "yes; really"}, {From: "B", To: "C"}},
		},
		{
			name:      "quot entity",
			src:       "flowchart TD\n N0[\"She said #quot;stop#quot;\"] --> N1[\"Then left\"]",
			wantNodes: []Node{{ID: "N0", Label: `She said "stop"`}, {ID: "N1", Label: "Then left"}},
			wantEdges: []Edge{{From: "N0", To: "N1"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, err := Parse(tc.src)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !slices.Equal(d.Nodes, tc.wantNodes) {
				t.Errorf("nodes=%+v, want %+v", d.Nodes, tc.wantNodes)
			}
			if !slices.Equal(d.Edges, tc.wantEdges) {
				t.Errorf("edges=%+v, want %+v", d.Edges, tc.wantEdges)
			}
		})
	}
}

func TestParse_RoundTripQuotedSentence(t *testing.T) {
	t.Parallel()

	orig := Fallback(KindFlowchart, `The teacher said "wait" before the class starts`,
		[]string{"Sit down; listen", "Open the book"})
	d, err := Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Nodes) != 3 || len(d.Edges) != 2 {
		t.Fatalf("nodes=%+v edges=%+v, want 3 nodes and 2 edges", d.Nodes, d.Edges)
	}
	if got, want := d.Nodes[0].Label, orig.Nodes[0].Label; got != want {
		t.Errorf("label=%q, want %q", got, want)
	}
	if d.String() != orig.String() {
		t.Errorf("round trip changed diagram:\n%s\nvs\n%s", d.String(), orig.String())
	}
}
