// Package profile stores the onboarding record a user fills in once. The
// assist pipeline reads it to tailor the simplification prompt.
//
// All store operations are safe for concurrent use.
package profile

import "time"

// Profile is one user's onboarding answers and display preferences.
type Profile struct {
	// ID is the profile's UUID. Generated by [Store.Create] when empty.
	ID string `yaml:"id" json:"profileId"`

	Onboarding    Onboarding    `yaml:"onboarding" json:"onboarding"`
	UIPreferences UIPreferences `yaml:"ui_preferences" json:"uiPreferences"`

	CreatedAt time.Time `yaml:"-" json:"createdAt"`
}

// Onboarding holds the answers that shape simplification.
type Onboarding struct {
	ComprehensionBreak ComprehensionBreak `yaml:"comprehension_break" json:"comprehensionBreak"`
	LearningPreference LearningPreference `yaml:"learning_preference" json:"learningPreference"`

	// ListeningThought is optional.
	ListeningThought ListeningThought `yaml:"listening_thought,omitempty" json:"listeningThought,omitempty"`

	// StruggleNote is free text in the user's own words.
	StruggleNote string `yaml:"struggle_note,omitempty" json:"struggleNote"`
}

// UIPreferences are passed through to the client unchanged.
type UIPreferences struct {
	Font      string `yaml:"font,omitempty" json:"font"`
	FontSize  string `yaml:"font_size,omitempty" json:"fontSize"`
	ColorMode string `yaml:"color_mode,omitempty" json:"colorMode"`
}

// UI preference defaults.
const (
	DefaultFont      = "Atkinson Hyperlegible"
	DefaultFontSize  = "medium"
	DefaultColorMode = "light"
)

// WithDefaults returns p with empty UI preferences set to their defaults.
func (p UIPreferences) WithDefaults() UIPreferences {
	if p.Font == "" {
		p.Font = DefaultFont
	}
	if p.FontSize == "" {
		p.FontSize = DefaultFontSize
	}
	if p.ColorMode == "" {
		p.ColorMode = DefaultColorMode
	}
	return p
}

// ComprehensionBreak is where the user usually loses track of speech.
type ComprehensionBreak string

const (
	BreakMissKeyTerms     ComprehensionBreak = "miss_key_terms"
	BreakLoseConnection   ComprehensionBreak = "lose_connection"
	BreakForgetSteps      ComprehensionBreak = "forget_steps"
	BreakOverwhelmedSpeed ComprehensionBreak = "overwhelmed_speed"
	BreakCantRetain       ComprehensionBreak = "cant_retain"
)

// IsValid reports whether b is a known value.
func (b ComprehensionBreak) IsValid() bool {
	switch b {
	case BreakMissKeyTerms, BreakLoseConnection, BreakForgetSteps, BreakOverwhelmedSpeed, BreakCantRetain:
		return true
	}
	return false
}

// LearningPreference is how the user prefers to receive explanations.
type LearningPreference string

const (
	PreferSimpleWords LearningPreference = "simple_words"
	PreferExamples    LearningPreference = "examples"
	PreferStepByStep  LearningPreference = "step_by_step"
	PreferVisuals     LearningPreference = "visuals"
)

// IsValid reports whether p is a known value.
func (p LearningPreference) IsValid() bool {
	switch p {
	case PreferSimpleWords, PreferExamples, PreferStepByStep, PreferVisuals:
		return true
	}
	return false
}

// ListeningThought is what the user feels they miss when listening.
type ListeningThought string

const (
	ThoughtMissedWords   ListeningThought = "missed_words"
	ThoughtMissedMeaning ListeningThought = "missed_meaning"
)

// IsValid reports whether t is empty or a known value.
func (t ListeningThought) IsValid() bool {
	switch t {
	case "", ThoughtMissedWords, ThoughtMissedMeaning:
		return true
	}
	return false
}
