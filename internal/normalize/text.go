package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// FallbackSentence replaces a simplified sentence that fails the quality gate
// when there is no key point to fall back to.
const FallbackSentence = "The speaker is sharing information, and the main ideas are listed below."

const (
	// MinSimplifiedWords is the fewest whitespace-delimited words a
	// simplified sentence may have.
	MinSimplifiedWords = 10
	// MaxKeyPoints caps the key point list.
	MaxKeyPoints = 5
	// MaxExplanationWords caps each hard-word explanation.
	MaxExplanationWords = 12
)

// verbLexicon holds the verb forms that mark a simplified sentence as a
// complete clause.
var verbLexicon = map[string]bool{
	"is": true, "are": true, "was": true, "were": true,
	"use": true, "uses": true,
	"make": true, "makes": true,
	"turn": true, "turns": true,
	"take": true, "takes": true,
	"produce": true, "produces": true,
	"convert": true, "converts": true,
}

var (
	undefinedToken = regexp.MustCompile(`(?i)\bundefined\b`)
	stepNumbering  = regexp.MustCompile(`(?i)^\s*(?:(?:step\s*)?\d+\s*[.):\-]|[-*•])(?:\s+|$)`)
)

// Sanitize removes the whole word "undefined" in any case and collapses every
// whitespace run to a single space.
func Sanitize(s string) string {
	s = undefinedToken.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// PassesQualityGate reports whether s has at least [MinSimplifiedWords]
// words and contains a verb from the lexicon. Punctuation around a word is
// ignored when matching the lexicon.
func PassesQualityGate(s string) bool {
	words := strings.Fields(s)
	if len(words) < MinSimplifiedWords {
		return false
	}
	for _, w := range words {
		w = strings.TrimFunc(strings.ToLower(w), func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		if verbLexicon[w] {
			return true
		}
	}
	return false
}

// CleanStep strips a leading ordinal ("1. ", "2) ", "Step 3:") or bullet from
// a step and sanitises the rest.
func CleanStep(s string) string {
	return Sanitize(stepNumbering.ReplaceAllString(s, ""))
}

// cleanSteps applies [CleanStep] to every step and drops steps left empty.
func cleanSteps(steps []string, rep *Report) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		c := CleanStep(s)
		if c != Sanitize(s) {
			rep.add(RepairStepNumbering)
		}
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// stringList coerces raw to a list of sanitised, non-empty strings. Anything
// that is not a JSON array yields an empty list; non-string items are
// dropped.
func stringList(raw any, repair Repair, rep *Report) []string {
	if raw == nil {
		return []string{}
	}
	items, ok := raw.([]any)
	if !ok {
		rep.add(repair)
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			rep.add(repair)
			continue
		}
		if s = Sanitize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// keyPointList is [stringList] capped at [MaxKeyPoints].
func keyPointList(raw any, rep *Report) []string {
	kp := stringList(raw, RepairKeyPoints, rep)
	if len(kp) > MaxKeyPoints {
		rep.add(RepairKeyPoints)
		kp = kp[:MaxKeyPoints]
	}
	return kp
}

// HardWords coerces raw to the glossary shape: lowercase, trimmed, unique
// keys mapping to explanations of at most [MaxExplanationWords] words.
// Anything but a JSON object (including an array) yields an empty map.
// Entries with an empty key or a non-string or empty explanation are
// dropped. When two keys collide after lowercasing, the one that sorts first
// in its original spelling wins.
func HardWords(raw any) map[string]string {
	return parseHardWords(raw, nil)
}

func parseHardWords(raw any, rep *Report) map[string]string {
	out := map[string]string{}
	if raw == nil {
		return out
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		rep.add(RepairHardWords)
		return out
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		term := strings.ToLower(strings.TrimSpace(k))
		expl, ok := obj[k].(string)
		if term == "" || !ok {
			rep.add(RepairHardWords)
			continue
		}
		if _, dup := out[term]; dup {
			rep.add(RepairHardWords)
			continue
		}
		words := strings.Fields(Sanitize(expl))
		if len(words) == 0 {
			rep.add(RepairHardWords)
			continue
		}
		if len(words) > MaxExplanationWords {
			rep.add(RepairHardWordTrimmed)
			words = words[:MaxExplanationWords]
		}
		out[term] = strings.Join(words, " ")
	}
	return out
}

// Steps coerces raw to a list of cleaned steps, or an empty list when
// multiStep is false.
func Steps(raw any, multiStep bool) []string {
	if !multiStep {
		return []string{}
	}
	return cleanSteps(stringList(raw, RepairSteps, nil), nil)
}

// Simplified applies sanitation and the quality gate to raw, falling back to
// the first key point or [FallbackSentence]. The boolean is false when
// neither raw nor keyPoints hold usable text.
func Simplified(raw any, keyPoints []string) (string, bool) {
	s, err := resolveSimplified(raw, keyPoints, nil)
	return s, err == nil
}
