package highlight

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// minSoundAlikeRunes keeps short words like "cell" and "sell" apart.
	minSoundAlikeRunes = 5

	// soundAlikeThreshold is the Jaro-Winkler score a word needs against a
	// term whose Double Metaphone codes it shares.
	soundAlikeThreshold = 0.85
)

type soundTerm struct {
	term
	word  string
	codes [2]string
}

// soundIndex holds the phonetic codes of the single-word glossary terms.
// A nil index matches nothing.
type soundIndex struct {
	terms []soundTerm
}

func newSoundIndex(terms []term) *soundIndex {
	idx := &soundIndex{}
	for _, t := range terms {
		w := string(t.runes)
		if len(t.runes) < minSoundAlikeRunes || strings.ContainsFunc(w, func(r rune) bool { return !isWordRune(r) }) {
			continue
		}
		p, s := matchr.DoubleMetaphone(w)
		idx.terms = append(idx.terms, soundTerm{term: t, word: w, codes: [2]string{p, s}})
	}
	return idx
}

// match returns the glossary term that word sounds like, if any. word must
// be lowercase. Among several candidates the highest Jaro-Winkler score
// wins; ties keep glossary order.
func (idx *soundIndex) match(word string) (term, bool) {
	if idx == nil || len(idx.terms) == 0 || len([]rune(word)) < minSoundAlikeRunes {
		return term{}, false
	}
	p, s := matchr.DoubleMetaphone(word)
	var (
		best  term
		score float64
	)
	for _, t := range idx.terms {
		if t.word == word || !sharesCode(t.codes, p, s) {
			continue
		}
		if jw := matchr.JaroWinkler(word, t.word, false); jw >= soundAlikeThreshold && jw > score {
			best, score = t.term, jw
		}
	}
	return best, score > 0
}

func sharesCode(codes [2]string, p, s string) bool {
	for _, c := range codes {
		if c != "" && (c == p || c == s) {
			return true
		}
	}
	return false
}
