// Package types defines the shared data model used across all AuraSync packages.
//
// These types form the contract between the normalization pipeline, the
// diagram pipeline and the HTTP surface. Results are created once per user
// turn, handed to the caller and superseded by the next turn; nothing in this
// package is persisted by the core.
package types

// Tone is the emotional register attributed to a [SpeakerSegment].
type Tone string

const (
	ToneSerious   Tone = "serious"
	ToneNeutral   Tone = "neutral"
	ToneJoking    Tone = "joking"
	ToneSarcastic Tone = "sarcastic"
	ToneAngry     Tone = "angry"
	ToneConfused  Tone = "confused"
	ToneStressed  Tone = "stressed"
)

// Tones lists every allowed [Tone] value.
var Tones = []Tone{
	ToneSerious, ToneNeutral, ToneJoking, ToneSarcastic,
	ToneAngry, ToneConfused, ToneStressed,
}

// IsValid reports whether t belongs to the closed tone set.
func (t Tone) IsValid() bool {
	switch t {
	case ToneSerious, ToneNeutral, ToneJoking, ToneSarcastic,
		ToneAngry, ToneConfused, ToneStressed:
		return true
	}
	return false
}

// Flags are the model's classification of the utterance.
type Flags struct {
	ComplexConcept bool `json:"complex_concept"`
	NeedsVisual    bool `json:"needs_visual"`
	MultiStep      bool `json:"multi_step"`
}

// SpeakerSegment is a labelled span of the utterance attributed to one
// inferred speaker.
type SpeakerSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Tone    Tone   `json:"tone"`
}

// SimplificationResult is the validated output of one simplification turn.
//
// A value returned by the normalizer always satisfies:
//   - Steps is empty unless Flags.MultiStep is true.
//   - SpeakerSegments is empty or holds at least two distinct speakers.
//   - Every segment tone is one of [Tones].
//   - Simplified holds no "undefined" token and no whitespace runs.
type SimplificationResult struct {
	Simplified      string            `json:"simplified"`
	KeyPoints       []string          `json:"keyPoints"`
	Steps           []string          `json:"steps"`
	HardWords       map[string]string `json:"hardWords"`
	SpeakerSegments []SpeakerSegment  `json:"speakerSegments"`
	NoiseDetected   bool              `json:"noiseDetected"`
	Flags           Flags             `json:"flags"`
}

// Reduced returns the follow-up view of r used as context for a continuation.
func (r SimplificationResult) Reduced() ReducedResult {
	return ReducedResult{
		Simplified: r.Simplified,
		KeyPoints:  r.KeyPoints,
		Steps:      r.Steps,
		HardWords:  r.HardWords,
	}
}

// ReducedResult is the smaller schema used by context continuation turns.
// It carries no speaker, tone or noise information.
type ReducedResult struct {
	Simplified string            `json:"simplified"`
	KeyPoints  []string          `json:"keyPoints"`
	Steps      []string          `json:"steps"`
	HardWords  map[string]string `json:"hardWords"`
}

// VisualIntent is the diagram decision attached to a [DiagramPayload].
type VisualIntent string

const (
	VisualFlowchart    VisualIntent = "FLOWCHART"
	VisualGraph        VisualIntent = "GRAPH"
	VisualNone         VisualIntent = "NONE"
	VisualUserDisabled VisualIntent = "USER_DISABLED"
)

// DiagramPayload is the result of the diagram pipeline. Diagram is nil when
// no diagram is available.
type DiagramPayload struct {
	Diagram      *string      `json:"diagram"`
	VisualIntent VisualIntent `json:"visualIntent"`
}
