// Package normalize turns a parsed-but-untrusted model object into a
// [types.SimplificationResult] that satisfies every invariant of the data
// model.
//
// The model is treated as an unreliable text source. Every field is coerced
// to its expected shape and every content rule is enforced in code, in a
// fixed order:
//
//  1. keyPoints, steps and hardWords are coerced to their shapes.
//  2. speakerSegments are filtered, merged down and tone-checked.
//  3. steps are dropped unless flags.multi_step is strictly true.
//  4. simplified is sanitised.
//  5. simplified must pass the quality gate or is replaced.
//  6. leading numbering is stripped from every step.
//
// Normalization prefers repair over rejection: only an object with neither a
// usable simplified sentence nor any key point fails, with
// [response.ErrMalformed].
//
// All functions are pure; [Normalizer] adds logging and repair metrics on
// top.
package normalize

import (
	"context"
	"fmt"

	"github.com/MrWong99/aurasync/internal/observe"
	"github.com/MrWong99/aurasync/internal/response"
	"github.com/MrWong99/aurasync/pkg/types"
)

// Repair names a rule that had to change model output.
type Repair string

const (
	RepairKeyPoints       Repair = "key_points_coerced"
	RepairSteps           Repair = "steps_coerced"
	RepairHardWords       Repair = "hard_words_coerced"
	RepairSpeakerNoise    Repair = "speaker_noise_dropped"
	RepairSpeakerMerged   Repair = "speakers_merged"
	RepairSpeakerSingle   Repair = "speakers_single_dropped"
	RepairSpeakerDefault  Repair = "speaker_defaulted"
	RepairTone            Repair = "tone_coerced"
	RepairStepsGated      Repair = "steps_gated"
	RepairSanitized       Repair = "simplified_sanitized"
	RepairSimplified      Repair = "simplified_replaced"
	RepairStepNumbering   Repair = "step_numbering_stripped"
	RepairHardWordTrimmed Repair = "hard_word_truncated"
)

// Report lists the repairs applied during one normalization, in rule order.
// A repair is listed at most once.
type Report struct {
	Repairs []Repair
}

func (r *Report) add(rep Repair) {
	if r == nil {
		return
	}
	for _, have := range r.Repairs {
		if have == rep {
			return
		}
	}
	r.Repairs = append(r.Repairs, rep)
}

// Has reports whether rep was applied.
func (r *Report) Has(rep Repair) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Repairs {
		if have == rep {
			return true
		}
	}
	return false
}

// Result normalizes a full simplification object.
func Result(obj map[string]any) (types.SimplificationResult, error) {
	return result(obj, nil)
}

// Reduced normalizes a continuation object. The reduced schema carries no
// flags, so steps are kept; every other text rule still applies.
func Reduced(obj map[string]any) (types.ReducedResult, error) {
	return reduced(obj, nil)
}

func result(obj map[string]any, rep *Report) (types.SimplificationResult, error) {
	// Rule 1.
	keyPoints := keyPointList(obj["keyPoints"], rep)
	steps := stringList(obj["steps"], RepairSteps, rep)
	hardWords := parseHardWords(obj["hardWords"], rep)

	// Rule 2.
	segments := []types.SpeakerSegment{}
	if raw, ok := obj["speakerSegments"].([]any); ok {
		segments = speakers(parseSegments(raw), rep)
	}

	flags := parseFlags(obj["flags"])

	// Rule 3.
	if !flags.MultiStep && len(steps) > 0 {
		rep.add(RepairStepsGated)
		steps = []string{}
	}

	// Rules 4 and 5.
	simplified, err := resolveSimplified(obj["simplified"], keyPoints, rep)
	if err != nil {
		return types.SimplificationResult{}, err
	}

	// Rule 6.
	steps = cleanSteps(steps, rep)

	return types.SimplificationResult{
		Simplified:      simplified,
		KeyPoints:       keyPoints,
		Steps:           steps,
		HardWords:       hardWords,
		SpeakerSegments: segments,
		NoiseDetected:   isTrue(obj["noiseDetected"]),
		Flags:           flags,
	}, nil
}

func reduced(obj map[string]any, rep *Report) (types.ReducedResult, error) {
	keyPoints := keyPointList(obj["keyPoints"], rep)
	steps := stringList(obj["steps"], RepairSteps, rep)
	hardWords := parseHardWords(obj["hardWords"], rep)

	simplified, err := resolveSimplified(obj["simplified"], keyPoints, rep)
	if err != nil {
		return types.ReducedResult{}, err
	}

	return types.ReducedResult{
		Simplified: simplified,
		KeyPoints:  keyPoints,
		Steps:      cleanSteps(steps, rep),
		HardWords:  hardWords,
	}, nil
}

// resolveSimplified applies rules 4 and 5 and fails when nothing usable is left.
func resolveSimplified(raw any, keyPoints []string, rep *Report) (string, error) {
	s, _ := raw.(string)
	clean := Sanitize(s)
	if clean != s {
		rep.add(RepairSanitized)
	}
	if clean == "" && len(keyPoints) == 0 {
		return "", fmt.Errorf("normalize: %w: no simplified text or key points", response.ErrMalformed)
	}
	if PassesQualityGate(clean) {
		return clean, nil
	}
	rep.add(RepairSimplified)
	if len(keyPoints) > 0 {
		return keyPoints[0], nil
	}
	return FallbackSentence, nil
}

// parseFlags reads the flags object. A flag is set only when the model sent
// the boolean true.
func parseFlags(raw any) types.Flags {
	m, _ := raw.(map[string]any)
	return types.Flags{
		ComplexConcept: isTrue(m["complex_concept"]),
		NeedsVisual:    isTrue(m["needs_visual"]),
		MultiStep:      isTrue(m["multi_step"]),
	}
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// Normalizer wraps the pure normalization functions with logging and repair
// metrics.
type Normalizer struct {
	metrics *observe.Metrics
}

// NewNormalizer returns a Normalizer recording to m, or to
// [observe.DefaultMetrics] when m is nil.
func NewNormalizer(m *observe.Metrics) *Normalizer {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Normalizer{metrics: m}
}

// Result is [Result] with repairs logged at debug level and counted.
func (n *Normalizer) Result(ctx context.Context, obj map[string]any) (types.SimplificationResult, error) {
	var rep Report
	res, err := result(obj, &rep)
	n.record(ctx, "result", &rep)
	return res, err
}

// Reduced is [Reduced] with repairs logged at debug level and counted.
func (n *Normalizer) Reduced(ctx context.Context, obj map[string]any) (types.ReducedResult, error) {
	var rep Report
	res, err := reduced(obj, &rep)
	n.record(ctx, "reduced", &rep)
	return res, err
}

func (n *Normalizer) record(ctx context.Context, schema string, rep *Report) {
	if len(rep.Repairs) == 0 {
		return
	}
	log := observe.Logger(ctx)
	for _, r := range rep.Repairs {
		n.metrics.RecordRepair(ctx, string(r))
		log.Debug("normalizer repaired model output", "schema", schema, "rule", string(r))
	}
}
