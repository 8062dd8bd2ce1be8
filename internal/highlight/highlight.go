// Package highlight splits a sentence into plain and hard segments so a UI
// can mark glossary terms.
package highlight

import (
	"slices"
	"strings"
	"unicode"
)

// LongWordRunes is the letter count from which the long-word heuristic
// treats a word as hard.
const LongWordRunes = 9

// Segment is a run of text. Hard segments carry the glossary explanation
// when they matched a glossary term.
type Segment struct {
	Text        string `json:"text"`
	Hard        bool   `json:"hard"`
	Explanation string `json:"explanation,omitempty"`
}

// Options selects the heuristics applied on top of exact glossary matches.
type Options struct {
	// LongWords marks any word of at least [LongWordRunes] letters as hard.
	LongWords bool

	// SoundAlike marks words that sound like a single-word glossary term,
	// such as "photosinthesis" for "photosynthesis", and carries that term's
	// explanation.
	SoundAlike bool
}

// Segments splits text around the terms of glossary. Matching is
// case-insensitive, respects word boundaries and prefers the longest term
// starting at a position. Words that matched no term are then checked
// against the heuristics enabled in opts. Concatenating the segment texts
// yields text unchanged.
func Segments(text string, glossary map[string]string, opts Options) []Segment {
	if text == "" {
		return nil
	}
	src := []rune(text)
	lower := make([]rune, len(src))
	for i, r := range src {
		lower[i] = unicode.ToLower(r)
	}
	terms := sortedTerms(glossary)
	var sounds *soundIndex
	if opts.SoundAlike {
		sounds = newSoundIndex(terms)
	}

	var out []Segment
	plainStart := 0
	flush := func(end int) {
		if end > plainStart {
			out = append(out, Segment{Text: string(src[plainStart:end])})
		}
	}
	hard := func(start, end int, explanation string) {
		flush(start)
		out = append(out, Segment{Text: string(src[start:end]), Hard: true, Explanation: explanation})
		plainStart = end
	}

	for i := 0; i < len(src); {
		if i > 0 && isWordRune(src[i-1]) {
			i++
			continue
		}
		if t, ok := matchAt(lower, i, terms); ok {
			end := i + len(t.runes)
			hard(i, end, t.explanation)
			i = end
			continue
		}
		if !unicode.IsLetter(src[i]) || !(opts.LongWords || opts.SoundAlike) {
			i++
			continue
		}
		end := i
		for end < len(src) && isWordRune(src[end]) {
			end++
		}
		if t, ok := sounds.match(string(lower[i:end])); ok {
			hard(i, end, t.explanation)
		} else if opts.LongWords && letters(src[i:end]) >= LongWordRunes {
			hard(i, end, "")
		}
		i = end
	}
	flush(len(src))
	return out
}

type term struct {
	runes       []rune
	explanation string
}

// sortedTerms returns the glossary lowercased, longest first. Ties keep key
// order so the output is deterministic.
func sortedTerms(glossary map[string]string) []term {
	keys := make([]string, 0, len(glossary))
	for k := range glossary {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	seen := make(map[string]bool, len(keys))
	terms := make([]term, 0, len(keys))
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		if lk == "" || seen[lk] {
			continue
		}
		seen[lk] = true
		terms = append(terms, term{runes: []rune(lk), explanation: glossary[k]})
	}
	slices.SortStableFunc(terms, func(a, b term) int { return len(b.runes) - len(a.runes) })
	return terms
}

func matchAt(lower []rune, i int, terms []term) (term, bool) {
	for _, t := range terms {
		end := i + len(t.runes)
		if end > len(lower) || !slices.Equal(lower[i:end], t.runes) {
			continue
		}
		if end < len(lower) && isWordRune(lower[end]) {
			continue
		}
		return t, true
	}
	return term{}, false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func letters(rs []rune) int {
	n := 0
	for _, r := range rs {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
