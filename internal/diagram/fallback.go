package diagram

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Fallback label limits.
const (
	MaxLabelWords = 8
	MaxLabelRunes = 56
	// MaxFallbackKeyPoints is how many key points follow the simplified
	// sentence in a fallback chain.
	MaxFallbackKeyPoints = 4
)

const ellipsis = "…"

// Fallback builds a linear chain N0 --> N1 --> ... from simplified and up to
// [MaxFallbackKeyPoints] key points. Inputs are whitespace-collapsed, empty
// ones are skipped and case-insensitive duplicates dropped. Each label is
// clipped to [MaxLabelWords] words and [MaxLabelRunes] runes, ending in an
// ellipsis when clipped. Fallback returns nil when no input has text.
func Fallback(kind Kind, simplified string, keyPoints []string) *Diagram {
	seen := make(map[string]bool)
	var labels []string
	add := func(s string) bool {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return false
		}
		seen[key] = true
		labels = append(labels, TruncateLabel(s))
		return true
	}

	add(simplified)
	taken := 0
	for _, kp := range keyPoints {
		if taken == MaxFallbackKeyPoints {
			break
		}
		if add(kp) {
			taken++
		}
	}
	if len(labels) == 0 {
		return nil
	}

	d := New(kind)
	for i, l := range labels {
		d.AddNode(nodeID(i), l)
	}
	for i := 1; i < len(labels); i++ {
		d.AddEdge(nodeID(i-1), nodeID(i), "")
	}
	return d
}

func nodeID(i int) string { return fmt.Sprintf("N%d", i) }

// TruncateLabel clips s to [MaxLabelWords] words and [MaxLabelRunes] runes.
// A clipped label ends in "…" and still fits within [MaxLabelRunes].
func TruncateLabel(s string) string {
	words := strings.Fields(s)
	clipped := false
	if len(words) > MaxLabelWords {
		words = words[:MaxLabelWords]
		clipped = true
	}
	out := strings.Join(words, " ")
	if !clipped && utf8.RuneCountInString(out) <= MaxLabelRunes {
		return out
	}
	r := []rune(out)
	if len(r) > MaxLabelRunes-1 {
		r = r[:MaxLabelRunes-1]
	}
	head := strings.TrimRight(string(r), " ,;:.-")
	if head == "" {
		head = strings.TrimSpace(string(r))
	}
	return head + ellipsis
}

// Limits bound a model-generated diagram.
type Limits struct {
	// MaxChars bounds the whole diagram text, in runes.
	MaxChars int
	// MaxLabelChars bounds every quoted label, in runes.
	MaxLabelChars int
}

// DefaultLimits are the density limits used when none are configured.
var DefaultLimits = Limits{MaxChars: 2200, MaxLabelChars: 90}

var quotedLabel = regexp.MustCompile(`"([^"]*)"`)

// Dense reports whether src is too large to render readably: longer than
// lim.MaxChars, or holding a quoted label longer than lim.MaxLabelChars.
// Zero limits fall back to [DefaultLimits].
func Dense(src string, lim Limits) bool {
	if lim.MaxChars <= 0 {
		lim.MaxChars = DefaultLimits.MaxChars
	}
	if lim.MaxLabelChars <= 0 {
		lim.MaxLabelChars = DefaultLimits.MaxLabelChars
	}
	if utf8.RuneCountInString(src) > lim.MaxChars {
		return true
	}
	for _, m := range quotedLabel.FindAllStringSubmatch(src, -1) {
		if utf8.RuneCountInString(m[1]) > lim.MaxLabelChars {
			return true
		}
	}
	return false
}
