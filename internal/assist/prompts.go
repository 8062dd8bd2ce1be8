package assist

import (
	"fmt"
	"strings"

	"github.com/MrWong99/aurasync/internal/profile"
	"github.com/MrWong99/aurasync/pkg/types"
)

// simplifyPromptTemplate is filled with the profile answers and the
// transcript. The normalizer enforces every rule stated here again.
const simplifyPromptTemplate = `You are an accessibility AI for users with Auditory Processing Disorder.

USER PROFILE:
- Comprehension issue: %s
- Learning preference: %s
- Listening issue: %s
- User struggle note: "%s"

Rewrite the transcript so it is easy to follow:
- "simplified": one plain sentence of at least 10 words with a clear verb.
- "keyPoints": at most 5 short key points.
- "steps": ordered steps, only when the transcript describes a process. Do not number them.
- "hardWords": difficult words mapped to an explanation of at most 12 words.
- "speakerSegments": who said what, with a tone of serious, neutral, joking, sarcastic, angry, confused or stressed. Leave empty for a single speaker.
- "noiseDetected": true when the transcript contains filler or background noise.

Return ONLY valid JSON:
{
  "simplified": "",
  "keyPoints": [],
  "steps": [],
  "hardWords": {},
  "speakerSegments": [{"speaker": "", "text": "", "tone": "neutral"}],
  "noiseDetected": false,
  "flags": {
    "complex_concept": false,
    "needs_visual": false,
    "multi_step": false
  }
}

TRANSCRIPT:
%s`

// continuePromptTemplate asks for a follow-up that only expands on the
// user's question.
const continuePromptTemplate = `You are an accessibility AI for users with Auditory Processing Disorder.
The user already received this explanation:

Summary: %s
Key points:
%s

The user now asks: "%s"

Answer only what was asked, in plain words, building on the explanation above.

Return ONLY valid JSON:
{
  "simplified": "",
  "keyPoints": [],
  "steps": [],
  "hardWords": {}
}`

func simplifyPrompt(text string, p profile.Profile) string {
	ob := p.Onboarding
	listening := string(ob.ListeningThought)
	if listening == "" {
		listening = "not specified"
	}
	note := strings.TrimSpace(ob.StruggleNote)
	if note == "" {
		note = "None"
	}
	return fmt.Sprintf(simplifyPromptTemplate,
		ob.ComprehensionBreak, ob.LearningPreference, listening, note, text)
}

func continuePrompt(query string, prev types.ReducedResult) string {
	return fmt.Sprintf(continuePromptTemplate,
		prev.Simplified, bulletList(prev.KeyPoints), query)
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it)
	}
	return b.String()
}
