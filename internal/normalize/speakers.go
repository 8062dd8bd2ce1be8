package normalize

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/aurasync/pkg/types"
)

// Speaker merge-down limits.
const (
	// MinSegmentRunes is the shortest segment text kept; shorter spans are
	// filler ("uh huh", "right").
	MinSegmentRunes = 20
	// MaxSpeakers is the largest number of distinct speakers shown as-is.
	MaxSpeakers = 4
	// KeptSpeakers is how many of the most frequent speakers survive a
	// merge-down.
	KeptSpeakers = 3
	// MergedSpeaker labels every speaker folded in a merge-down.
	MergedSpeaker = "Team Member"
	// DefaultSpeaker names a segment that came without a speaker.
	DefaultSpeaker = "Narrator"
)

// Speakers applies the speaker rules to already-typed segments and returns
// the surviving segments, or an empty slice.
//
// Segments with fewer than [MinSegmentRunes] runes of text are dropped.
// A missing speaker becomes [DefaultSpeaker] before speakers are counted, so
// that the result is stable under repeated normalization. With more than
// [MaxSpeakers] distinct speakers, the [KeptSpeakers] most frequent keep
// their names (ties go to the speaker seen first) and all others become
// [MergedSpeaker]. Fewer than two distinct speakers yield an empty slice.
// Tones outside [types.Tones] become neutral.
func Speakers(segs []types.SpeakerSegment) []types.SpeakerSegment {
	return speakers(segs, nil)
}

func speakers(segs []types.SpeakerSegment, rep *Report) []types.SpeakerSegment {
	kept := make([]types.SpeakerSegment, 0, len(segs))
	for _, s := range segs {
		s.Text = strings.TrimSpace(s.Text)
		if utf8.RuneCountInString(s.Text) < MinSegmentRunes {
			rep.add(RepairSpeakerNoise)
			continue
		}
		s.Speaker = strings.TrimSpace(s.Speaker)
		if s.Speaker == "" {
			rep.add(RepairSpeakerDefault)
			s.Speaker = DefaultSpeaker
		}
		tone := types.Tone(strings.ToLower(strings.TrimSpace(string(s.Tone))))
		if !tone.IsValid() {
			rep.add(RepairTone)
			tone = types.ToneNeutral
		}
		s.Tone = tone
		kept = append(kept, s)
	}

	order := speakerOrder(kept)
	if len(order) > MaxSpeakers {
		rep.add(RepairSpeakerMerged)
		top := make(map[string]bool, KeptSpeakers)
		for _, name := range order[:KeptSpeakers] {
			top[name] = true
		}
		for i := range kept {
			if !top[kept[i].Speaker] {
				kept[i].Speaker = MergedSpeaker
			}
		}
		order = speakerOrder(kept)
	}

	if len(order) < 2 {
		if len(kept) > 0 {
			rep.add(RepairSpeakerSingle)
		}
		return []types.SpeakerSegment{}
	}
	return kept
}

// speakerOrder returns the distinct speakers of segs, most frequent first,
// ties broken by first appearance.
func speakerOrder(segs []types.SpeakerSegment) []string {
	counts := make(map[string]int)
	first := make(map[string]int)
	var names []string
	for i, s := range segs {
		if _, seen := counts[s.Speaker]; !seen {
			first[s.Speaker] = i
			names = append(names, s.Speaker)
		}
		counts[s.Speaker]++
	}
	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return first[a] < first[b]
	})
	return names
}

// parseSegments converts raw model items into typed segments. Items that are
// not objects are skipped; non-string fields read as empty.
func parseSegments(raw []any) []types.SpeakerSegment {
	segs := make([]types.SpeakerSegment, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		speaker, _ := m["speaker"].(string)
		text, _ := m["text"].(string)
		tone, _ := m["tone"].(string)
		segs = append(segs, types.SpeakerSegment{
			Speaker: speaker,
			Text:    text,
			Tone:    types.Tone(tone),
		})
	}
	return segs
}
