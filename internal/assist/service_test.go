package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/aurasync/internal/diagram"
	"github.com/MrWong99/aurasync/internal/gateway"
	"github.com/MrWong99/aurasync/internal/highlight"
	"github.com/MrWong99/aurasync/internal/observe"
	"github.com/MrWong99/aurasync/internal/profile"
	"github.com/MrWong99/aurasync/internal/response"
	"github.com/MrWong99/aurasync/pkg/provider/llm/mock"
	"github.com/MrWong99/aurasync/pkg/types"
)

const simplifyReply = "Sure! Here is the JSON:\n```json\n" + `{
  "simplified": "Plants use sunlight and water to make the food they need.",
  "keyPoints": ["Leaves absorb light", "Roots absorb water"],
  "steps": ["1. Absorb light", "2. Make sugar"],
  "hardWords": {"Sunlight": "light that comes from the sun"},
  "speakerSegments": [{"speaker": "Teacher", "text": "Plants are amazing living things."}],
  "flags": {"multi_step": false, "needs_visual": true}
}` + "\n```"

// rig holds one scripted provider per pipeline stage.
type rig struct {
	simplify, cont, visual, diagram *mock.Provider
	reader                          *sdkmetric.ManualReader
	svc                             *Service
}

func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	r := &rig{
		simplify: &mock.Provider{},
		cont:     &mock.Provider{},
		visual:   &mock.Provider{},
		diagram:  &mock.Provider{},
		reader:   reader,
	}
	gw := func(component string, p *mock.Provider) *gateway.Gateway {
		g, err := gateway.New(component, p,
			gateway.WithMetrics(m),
			gateway.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		)
		if err != nil {
			t.Fatalf("gateway.New: %v", err)
		}
		return g
	}
	opts = append([]Option{WithMetrics(m)}, opts...)
	r.svc, err = New(Generators{
		Simplify: gw("simplify", r.simplify),
		Continue: gw("continue", r.cont),
		Visual:   gw("visual", r.visual),
		Diagram:  gw("diagram", r.diagram),
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

// outcomes returns the diagram outcome counter per source.
func (r *rig) outcomes(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "aurasync.diagram.outcomes" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("diagram outcomes data is %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("source")
				got[v.AsString()] += dp.Value
			}
		}
	}
	return got
}

func testProfile() profile.Profile {
	return profile.Profile{
		ID: "demo",
		Onboarding: profile.Onboarding{
			ComprehensionBreak: profile.BreakForgetSteps,
			LearningPreference: profile.PreferVisuals,
			ListeningThought:   profile.ThoughtMissedMeaning,
			StruggleNote:       "Lectures move too fast.",
		},
	}
}

func reply(s string) []mock.Result { return []mock.Result{{Content: s}} }

// ── Simplify ──────────────────────────────────────────────────────────────────

func TestSimplify_Pipeline(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.simplify.Script = reply(simplifyReply)

	got, err := r.svc.Simplify(context.Background(), "  Plants photosynthesize, right?  ", testProfile())
	if err != nil {
		t.Fatalf("Simplify: %v", err)
	}
	if got.Simplified != "Plants use sunlight and water to make the food they need." {
		t.Errorf("Simplified=%q", got.Simplified)
	}
	if len(got.Steps) != 0 {
		t.Errorf("Steps=%v, want gated to empty", got.Steps)
	}
	if got.HardWords["sunlight"] == "" {
		t.Errorf("HardWords=%v, want lowercased key", got.HardWords)
	}
	if len(got.SpeakerSegments) != 0 {
		t.Errorf("SpeakerSegments=%v, want single speaker dropped", got.SpeakerSegments)
	}
	if !got.Flags.NeedsVisual {
		t.Error("NeedsVisual lost")
	}

	prompt := r.simplify.LastPrompt()
	for _, want := range []string{
		"Comprehension issue: forget_steps",
		"Learning preference: visuals",
		"Listening issue: missed_meaning",
		`"Lectures move too fast."`,
		"TRANSCRIPT:\nPlants photosynthesize, right?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSimplify_InvalidInputMakesNoCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		p    profile.Profile
	}{
		{"empty text", "   ", testProfile()},
		{"empty profile", "hello", profile.Profile{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := newRig(t)
			_, err := r.svc.Simplify(context.Background(), tc.text, tc.p)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err=%v, want ErrInvalidInput", err)
			}
			if r.simplify.Calls() != 0 {
				t.Errorf("calls=%d, want 0", r.simplify.Calls())
			}
		})
	}
}

func TestSimplify_Malformed(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.simplify.Script = reply("I'm sorry, I can't help with that.")
	_, err := r.svc.Simplify(context.Background(), "hello", testProfile())
	if !errors.Is(err, response.ErrMalformed) {
		t.Errorf("err=%v, want ErrMalformed", err)
	}
	if r.simplify.Calls() != 1 {
		t.Errorf("calls=%d, malformed output must not be retried", r.simplify.Calls())
	}
}

func TestSimplify_RetriesThenUnavailable(t *testing.T) {
	t.Parallel()

	overloaded := errors.New("503 Service Unavailable")

	r := newRig(t)
	r.simplify.Script = []mock.Result{{Err: overloaded}, {Err: overloaded}, {Content: simplifyReply}}
	if _, err := r.svc.Simplify(context.Background(), "hello", testProfile()); err != nil {
		t.Fatalf("Simplify after two transient failures: %v", err)
	}
	if r.simplify.Calls() != 3 {
		t.Errorf("calls=%d, want 3", r.simplify.Calls())
	}

	r = newRig(t)
	r.simplify.Script = []mock.Result{{Err: overloaded}}
	_, err := r.svc.Simplify(context.Background(), "hello", testProfile())
	if !errors.Is(err, gateway.ErrProviderUnavailable) {
		t.Errorf("err=%v, want ErrProviderUnavailable", err)
	}
	if r.simplify.Calls() != 3 {
		t.Errorf("calls=%d, want 3", r.simplify.Calls())
	}
}

func TestAssist_Highlights(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.simplify.Script = reply(simplifyReply)
	got, err := r.svc.Assist(context.Background(), "hello", testProfile())
	if err != nil {
		t.Fatalf("Assist: %v", err)
	}
	want := []highlight.Segment{
		{Text: "Plants use "},
		{Text: "sunlight", Hard: true, Explanation: "light that comes from the sun"},
		{Text: " and water to make the food they need."},
	}
	if len(got.Highlights) != len(want) {
		t.Fatalf("Highlights=%+v, want %+v", got.Highlights, want)
	}
	for i := range want {
		if got.Highlights[i] != want[i] {
			t.Errorf("segment %d=%+v, want %+v", i, got.Highlights[i], want[i])
		}
	}
}

func hardSegments(segs []highlight.Segment) int {
	n := 0
	for _, s := range segs {
		if s.Hard {
			n++
		}
	}
	return n
}

func joinSegments(segs []highlight.Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestHighlights_SoundAlike(t *testing.T) {
	t.Parallel()

	res := types.SimplificationResult{
		Simplified: "Plants need sunlite.",
		HardWords:  map[string]string{"sunlight": "light that comes from the sun"},
	}

	on := newRig(t).svc.Highlights(res)
	if n := hardSegments(on); n != 1 || on[1].Explanation == "" {
		t.Errorf("sound-alike on: %+v, want the misspelling explained", on)
	}

	off := newRig(t, WithSoundAlikeHighlights(false)).svc.Highlights(res)
	if n := hardSegments(off); n != 0 {
		t.Errorf("sound-alike off: %+v, want no hard segments", off)
	}
}

// ── Continue ──────────────────────────────────────────────────────────────────

func TestContinue(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.cont.Script = reply(`{"simplified": "Roots take water from the soil and move it up into the leaves.",
		"keyPoints": ["Roots take water"], "steps": ["1) Roots soak water", "2) Stems carry it"],
		"speakerSegments": [{"speaker": "A", "text": "ignored in the reduced schema"}]}`)

	prev := types.ReducedResult{Simplified: "Plants use sunlight to make food.", KeyPoints: []string{"Leaves absorb light"}}
	got, err := r.svc.Continue(context.Background(), "How do roots help?", prev)
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if got.Simplified != "Roots take water from the soil and move it up into the leaves." {
		t.Errorf("Simplified=%q", got.Simplified)
	}
	if len(got.Steps) != 2 || got.Steps[0] != "Roots soak water" {
		t.Errorf("Steps=%v, want numbering stripped and steps kept", got.Steps)
	}
	prompt := r.cont.LastPrompt()
	for _, want := range []string{"Summary: Plants use sunlight to make food.", "- Leaves absorb light", `"How do roots help?"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestContinue_Errors(t *testing.T) {
	t.Parallel()

	prev := types.ReducedResult{Simplified: "Plants use sunlight to make food."}

	r := newRig(t)
	if _, err := r.svc.Continue(context.Background(), "", prev); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty query: err=%v, want ErrInvalidInput", err)
	}
	if _, err := r.svc.Continue(context.Background(), "why?", types.ReducedResult{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty previous result: err=%v, want ErrInvalidInput", err)
	}
	if r.cont.Calls() != 0 {
		t.Errorf("calls=%d, want 0", r.cont.Calls())
	}

	r.cont.Script = reply("no json here")
	if _, err := r.svc.Continue(context.Background(), "why?", prev); !errors.Is(err, response.ErrMalformed) {
		t.Errorf("err=%v, want ErrMalformed", err)
	}
}

// ── Diagram ───────────────────────────────────────────────────────────────────

const (
	plantsSimplified = "Plants use sunlight to make food"
)

var plantsKeyPoints = []string{"Leaves absorb light", "Roots absorb water"}

func TestDiagram_UserDisabled(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	got, err := r.svc.Diagram(context.Background(), plantsSimplified, plantsKeyPoints, false)
	if err != nil {
		t.Fatalf("Diagram: %v", err)
	}
	if got.Diagram != nil || got.VisualIntent != types.VisualUserDisabled {
		t.Errorf("payload=%+v, want nil USER_DISABLED", got)
	}
	if r.visual.Calls()+r.diagram.Calls() != 0 {
		t.Error("a model was called although visuals are disabled")
	}
	if n := r.outcomes(t)[observe.DiagramSourceDisabled]; n != 1 {
		t.Errorf("disabled outcomes=%d, want 1", n)
	}
}

func TestDiagram_InvalidInput(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	if _, err := r.svc.Diagram(context.Background(), " ", plantsKeyPoints, false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err=%v, want ErrInvalidInput", err)
	}
}

func TestDiagram_None(t *testing.T) {
	t.Parallel()

	for _, answer := range []mock.Result{{Content: "NONE"}, {Content: "maybe a pie chart"}, {Err: errors.New("permission denied")}} {
		r := newRig(t)
		r.visual.Script = []mock.Result{answer}
		got, err := r.svc.Diagram(context.Background(), plantsSimplified, plantsKeyPoints, true)
		if err != nil {
			t.Fatalf("Diagram: %v", err)
		}
		if got.Diagram != nil || got.VisualIntent != types.VisualNone {
			t.Errorf("answer %+v: payload=%+v, want nil NONE", answer, got)
		}
		if r.diagram.Calls() != 0 {
			t.Errorf("answer %+v: generator called for NONE", answer)
		}
	}
}

func TestDiagram_ModelDiagramCanonicalised(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.visual.Script = reply("FLOWCHART")
	r.diagram.Script = reply("```mermaid\nflowchart TD\n  A[Sun] --> B(\"Leaf\")\n```")

	got, err := r.svc.Diagram(context.Background(), plantsSimplified, plantsKeyPoints, true)
	if err != nil {
		t.Fatalf("Diagram: %v", err)
	}
	want := "flowchart TD\n    A[\"Sun\"]\n    B[\"Leaf\"]\n    A --> B"
	if got.Diagram == nil || *got.Diagram != want {
		t.Fatalf("diagram=%v, want %q", got.Diagram, want)
	}
	if got.VisualIntent != types.VisualFlowchart {
		t.Errorf("intent=%q", got.VisualIntent)
	}
	if n := r.outcomes(t)[observe.DiagramSourceModel]; n != 1 {
		t.Errorf("model outcomes=%d, want 1", n)
	}
}

func TestDiagram_Fallback(t *testing.T) {
	t.Parallel()

	longLabel := strings.Repeat("word ", 30)
	tests := []struct {
		name    string
		intent  string
		diagram mock.Result
		opts    []Option
		header  string
	}{
		{"sentinel NONE", "FLOWCHART", mock.Result{Content: "NONE"}, nil, "flowchart TD\n"},
		{"narration only", "GRAPH", mock.Result{Content: "Here is a comparison of the two."}, nil, "graph TD\n"},
		{"too many nodes", "FLOWCHART", mock.Result{Content: "flowchart TD\nA-->B-->C-->D-->E-->F-->G"}, nil, "flowchart TD\n"},
		{"label too long", "FLOWCHART", mock.Result{Content: "flowchart TD\nA[\"" + longLabel + "\"] --> B"}, nil, "flowchart TD\n"},
		{"custom limit", "FLOWCHART", mock.Result{Content: "flowchart TD\nA --> B"}, []Option{WithLimits(diagram.Limits{MaxChars: 10})}, "flowchart TD\n"},
		{"generator error", "FLOWCHART", mock.Result{Err: errors.New("invalid api key")}, nil, "flowchart TD\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := newRig(t, tc.opts...)
			r.visual.Script = reply(tc.intent)
			r.diagram.Script = []mock.Result{tc.diagram}

			got, err := r.svc.Diagram(context.Background(), plantsSimplified, plantsKeyPoints, true)
			if err != nil {
				t.Fatalf("Diagram: %v", err)
			}
			if got.Diagram == nil {
				t.Fatal("diagram is nil, want fallback chain")
			}
			want := diagram.Fallback(visualKind(tc.intent), plantsSimplified, plantsKeyPoints).String()
			if *got.Diagram != want {
				t.Errorf("diagram=\n%s\nwant\n%s", *got.Diagram, want)
			}
			if !strings.HasPrefix(*got.Diagram, tc.header) {
				t.Errorf("diagram header=%q, want %q", *got.Diagram, tc.header)
			}
			if string(got.VisualIntent) != tc.intent {
				t.Errorf("intent=%q, want %q", got.VisualIntent, tc.intent)
			}
			if n := r.outcomes(t)[observe.DiagramSourceFallback]; n != 1 {
				t.Errorf("fallback outcomes=%d, want 1", n)
			}
		})
	}
}

func visualKind(intent string) diagram.Kind {
	if intent == "GRAPH" {
		return diagram.KindGraph
	}
	return diagram.KindFlowchart
}

// ── Turn ──────────────────────────────────────────────────────────────────────

func TestTurn(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.simplify.Script = reply(simplifyReply)
	r.visual.Script = reply("FLOWCHART")
	r.diagram.Script = reply("NONE")

	got, err := r.svc.Turn(context.Background(), "hello", testProfile(), true)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if joinSegments(got.Highlights) != got.Simplified {
		t.Errorf("highlights %+v do not cover %q", got.Highlights, got.Simplified)
	}
	if got.Visual.Diagram == nil || !strings.HasPrefix(*got.Visual.Diagram, "flowchart TD\n    N0[") {
		t.Errorf("visual=%+v, want fallback chain", got.Visual)
	}
	if !strings.Contains(r.visual.LastPrompt(), "Leaves absorb light") {
		t.Error("classifier did not receive the normalized key points")
	}
}

func TestTurn_DiagramNeverFailsTurn(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.simplify.Script = reply(simplifyReply)
	r.visual.Script = []mock.Result{{Err: errors.New("503 overloaded")}}

	got, err := r.svc.Turn(context.Background(), "hello", testProfile(), true)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if got.Visual.VisualIntent != types.VisualNone || got.Visual.Diagram != nil {
		t.Errorf("visual=%+v, want nil NONE", got.Visual)
	}
	if r.visual.Calls() != 3 {
		t.Errorf("visual calls=%d, want the gateway to retry", r.visual.Calls())
	}
}

func TestTurn_SimplifyErrorFailsTurn(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.simplify.Script = reply("nothing useful")
	if _, err := r.svc.Turn(context.Background(), "hello", testProfile(), true); !errors.Is(err, response.ErrMalformed) {
		t.Errorf("err=%v, want ErrMalformed", err)
	}
	if r.visual.Calls() != 0 {
		t.Error("diagram stage ran after a failed simplification")
	}
}

func TestNew_RequiresGenerators(t *testing.T) {
	t.Parallel()

	if _, err := New(Generators{}); err == nil {
		t.Error("New with no generators: expected error")
	}
}
