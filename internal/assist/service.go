// Package assist runs one user turn through the response pipeline: model
// call, JSON extraction, normalization and the diagram stages.
//
// A [Service] holds no per-turn state. Every method may be called
// concurrently.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/aurasync/internal/diagram"
	"github.com/MrWong99/aurasync/internal/highlight"
	"github.com/MrWong99/aurasync/internal/normalize"
	"github.com/MrWong99/aurasync/internal/observe"
	"github.com/MrWong99/aurasync/internal/profile"
	"github.com/MrWong99/aurasync/internal/response"
	"github.com/MrWong99/aurasync/internal/visual"
	"github.com/MrWong99/aurasync/pkg/types"
)

// ErrInvalidInput is returned before any model call when a required field
// is missing.
var ErrInvalidInput = errors.New("assist: invalid input")

// TextGenerator produces raw model text for a prompt. *gateway.Gateway
// satisfies it.
type TextGenerator = visual.TextGenerator

// Generators are the model entry points of each pipeline stage. All four
// are required.
type Generators struct {
	Simplify TextGenerator
	Continue TextGenerator
	Visual   TextGenerator
	Diagram  TextGenerator
}

// AssistResult is a simplification with the simplified sentence split into
// highlight segments.
type AssistResult struct {
	types.SimplificationResult
	Highlights []highlight.Segment `json:"highlights"`
}

// TurnResult is an [AssistResult] together with its diagram.
type TurnResult struct {
	AssistResult
	Visual types.DiagramPayload `json:"visual"`
}

// Service is the pipeline boundary.
type Service struct {
	gens       Generators
	classifier *visual.Classifier
	generator  *visual.Generator
	normalizer *normalize.Normalizer
	metrics    *observe.Metrics
	limits     diagram.Limits
	highlights highlight.Options
}

// Option configures a [Service].
type Option func(*Service)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLimits sets the density limits applied to model diagrams.
func WithLimits(l diagram.Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithLongWordHighlights toggles marking long words as hard when they are
// not in the glossary. Enabled by default.
func WithLongWordHighlights(on bool) Option {
	return func(s *Service) { s.highlights.LongWords = on }
}

// WithSoundAlikeHighlights toggles marking words that sound like a glossary
// term, typically misspellings from live captions. Enabled by default.
func WithSoundAlikeHighlights(on bool) Option {
	return func(s *Service) { s.highlights.SoundAlike = on }
}

// New returns a Service using gens.
func New(gens Generators, opts ...Option) (*Service, error) {
	switch {
	case gens.Simplify == nil:
		return nil, fmt.Errorf("assist: simplify generator must not be nil")
	case gens.Continue == nil:
		return nil, fmt.Errorf("assist: continue generator must not be nil")
	case gens.Visual == nil:
		return nil, fmt.Errorf("assist: visual generator must not be nil")
	case gens.Diagram == nil:
		return nil, fmt.Errorf("assist: diagram generator must not be nil")
	}
	s := &Service{
		gens:       gens,
		metrics:    observe.DefaultMetrics(),
		limits:     diagram.DefaultLimits,
		highlights: highlight.Options{LongWords: true, SoundAlike: true},
	}
	for _, o := range opts {
		o(s)
	}
	s.classifier = visual.NewClassifier(gens.Visual)
	s.generator = visual.NewGenerator(gens.Diagram)
	s.normalizer = normalize.NewNormalizer(s.metrics)
	return s, nil
}

// Simplify runs text through the simplification model and returns the
// normalized result. It fails with [ErrInvalidInput] for empty text or an
// invalid profile, and with [response.ErrMalformed] when the model output
// holds no usable object.
func (s *Service) Simplify(ctx context.Context, text string, p profile.Profile) (_ types.SimplificationResult, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.SimplificationResult{}, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if err := profile.Validate(p); err != nil {
		return types.SimplificationResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx, span := observe.StartSpan(ctx, "assist.simplify")
	defer func() {
		observe.Fail(span, err)
		span.End()
	}()

	raw, err := s.gens.Simplify.Generate(ctx, simplifyPrompt(text, p))
	if err != nil {
		return types.SimplificationResult{}, fmt.Errorf("assist: simplify: %w", err)
	}
	obj, err := response.Extract(raw)
	if err != nil {
		observe.Logger(ctx).Warn("simplify response unparseable", "raw_len", len(raw), "err", err)
		return types.SimplificationResult{}, fmt.Errorf("assist: simplify: %w", err)
	}
	res, err := s.normalizer.Result(ctx, obj)
	if err != nil {
		return types.SimplificationResult{}, fmt.Errorf("assist: simplify: %w", err)
	}
	return res, nil
}

// Assist is [Service.Simplify] plus highlight segments for the simplified
// sentence.
func (s *Service) Assist(ctx context.Context, text string, p profile.Profile) (AssistResult, error) {
	res, err := s.Simplify(ctx, text, p)
	if err != nil {
		return AssistResult{}, err
	}
	return AssistResult{SimplificationResult: res, Highlights: s.Highlights(res)}, nil
}

// Highlights splits res.Simplified around its glossary terms.
func (s *Service) Highlights(res types.SimplificationResult) []highlight.Segment {
	segs := highlight.Segments(res.Simplified, res.HardWords, s.highlights)
	if segs == nil {
		return []highlight.Segment{}
	}
	return segs
}

// Continue answers a follow-up query about prev using the reduced schema.
func (s *Service) Continue(ctx context.Context, query string, prev types.ReducedResult) (_ types.ReducedResult, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return types.ReducedResult{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if strings.TrimSpace(prev.Simplified) == "" && len(prev.KeyPoints) == 0 {
		return types.ReducedResult{}, fmt.Errorf("%w: previousResult is required", ErrInvalidInput)
	}

	ctx, span := observe.StartSpan(ctx, "assist.continue")
	defer func() {
		observe.Fail(span, err)
		span.End()
	}()

	raw, err := s.gens.Continue.Generate(ctx, continuePrompt(query, prev))
	if err != nil {
		return types.ReducedResult{}, fmt.Errorf("assist: continue: %w", err)
	}
	obj, err := response.Extract(raw)
	if err != nil {
		observe.Logger(ctx).Warn("continue response unparseable", "raw_len", len(raw), "err", err)
		return types.ReducedResult{}, fmt.Errorf("assist: continue: %w", err)
	}
	res, err := s.normalizer.Reduced(ctx, obj)
	if err != nil {
		return types.ReducedResult{}, fmt.Errorf("assist: continue: %w", err)
	}
	return res, nil
}

// Diagram runs the visual pipeline for a result. When allowVisuals is false
// no model is called and the intent is USER_DISABLED. A classifier failure
// counts as NONE. A missing, unparseable or too dense model diagram is
// replaced by [diagram.Fallback]. The only error is [ErrInvalidInput].
func (s *Service) Diagram(ctx context.Context, simplified string, keyPoints []string, allowVisuals bool) (types.DiagramPayload, error) {
	if strings.TrimSpace(simplified) == "" {
		return types.DiagramPayload{}, fmt.Errorf("%w: simplified is required", ErrInvalidInput)
	}
	if !allowVisuals {
		s.metrics.RecordDiagramOutcome(ctx, observe.DiagramSourceDisabled)
		return types.DiagramPayload{VisualIntent: types.VisualUserDisabled}, nil
	}

	ctx, span := observe.StartSpan(ctx, "assist.diagram")
	defer span.End()
	log := observe.Logger(ctx)

	intent, err := s.classifier.Classify(ctx, simplified, keyPoints)
	if err != nil {
		log.Warn("visual intent classification failed, treating as NONE", "err", err)
	}
	span.SetAttributes(observe.AttrVisualIntent.String(string(intent)))
	if intent == types.VisualNone {
		s.metrics.RecordDiagramOutcome(ctx, observe.DiagramSourceNone)
		return types.DiagramPayload{VisualIntent: types.VisualNone}, nil
	}

	kind := visual.KindFor(intent)
	if src, ok := s.modelDiagram(ctx, simplified, keyPoints, kind); ok {
		span.SetAttributes(observe.AttrDiagramSrc.String(observe.DiagramSourceModel))
		s.metrics.RecordDiagramOutcome(ctx, observe.DiagramSourceModel)
		return types.DiagramPayload{Diagram: &src, VisualIntent: intent}, nil
	}

	fb := diagram.Fallback(kind, simplified, keyPoints)
	if fb == nil {
		s.metrics.RecordDiagramOutcome(ctx, observe.DiagramSourceNone)
		return types.DiagramPayload{VisualIntent: intent}, nil
	}
	src := fb.String()
	span.SetAttributes(observe.AttrDiagramSrc.String(observe.DiagramSourceFallback))
	s.metrics.RecordDiagramOutcome(ctx, observe.DiagramSourceFallback)
	log.Info("using fallback diagram", "intent", string(intent), "nodes", len(fb.Nodes))
	return types.DiagramPayload{Diagram: &src, VisualIntent: intent}, nil
}

// modelDiagram asks the model for a diagram and returns it in canonical form
// when it parses and passes the density check.
func (s *Service) modelDiagram(ctx context.Context, simplified string, keyPoints []string, kind diagram.Kind) (string, bool) {
	log := observe.Logger(ctx)
	body, ok, err := s.generator.Generate(ctx, simplified, keyPoints, kind)
	if err != nil {
		log.Warn("diagram generation failed", "err", err)
		return "", false
	}
	if !ok {
		log.Debug("model returned no diagram")
		return "", false
	}
	d, err := diagram.Parse(body)
	if err != nil {
		log.Info("model diagram rejected", "err", err)
		return "", false
	}
	src := d.String()
	if diagram.Dense(src, s.limits) {
		log.Info("model diagram rejected as too dense", "chars", len(src))
		return "", false
	}
	return src, true
}

// Turn simplifies text and then builds highlights and the diagram for the
// result concurrently. The diagram stage never fails the turn.
func (s *Service) Turn(ctx context.Context, text string, p profile.Profile, allowVisuals bool) (TurnResult, error) {
	res, err := s.Simplify(ctx, text, p)
	if err != nil {
		return TurnResult{}, err
	}

	var (
		segs    []highlight.Segment
		payload types.DiagramPayload
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		segs = s.Highlights(res)
		return nil
	})
	g.Go(func() error {
		dp, err := s.Diagram(gctx, res.Simplified, res.KeyPoints, allowVisuals)
		if err != nil {
			observe.Logger(gctx).Warn("diagram stage failed", "err", err)
			dp = types.DiagramPayload{VisualIntent: types.VisualNone}
		}
		payload = dp
		return nil
	})
	_ = g.Wait()

	return TurnResult{
		AssistResult: AssistResult{SimplificationResult: res, Highlights: segs},
		Visual:       payload,
	}, nil
}
