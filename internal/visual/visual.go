// Package visual decides whether a diagram would help a simplified result
// and asks a model to draw one.
//
// Both stages are fail-safe: the [Classifier] answers NONE whenever the model
// says anything outside FLOWCHART, GRAPH or NONE, and the [Generator]
// reports "no diagram" rather than passing narration on to the renderer.
// Callers resolve a missing diagram with [diagram.Fallback].
package visual

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/aurasync/internal/diagram"
	"github.com/MrWong99/aurasync/pkg/types"
)

// TextGenerator produces raw model text for a prompt. *gateway.Gateway
// satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const classifyPromptTemplate = `You are classifying whether a visual diagram would meaningfully help understanding.

Answer with ONLY one word:
- FLOWCHART (causal, process, steps, progression)
- GRAPH (comparison, change, increase/decrease)
- NONE (emotional state, status update, opinion, isolated facts)

Text:
%s

Key points:
%s
`

const diagramPromptTemplate = `You are an accessibility assistant generating visual scaffolding.
Task: generate a Mermaid.js %s diagram.
Max 6 nodes. Use short labels. Declare nodes as id["label"] and connect them with -->.
ONLY return the Mermaid code. No markdown blocks, no explanations.
If no relationships exist, return NONE.

Summary: %s
Key points:
%s
`

// Classifier chooses the diagram kind for a result.
type Classifier struct {
	gen TextGenerator
}

// NewClassifier returns a Classifier backed by gen.
func NewClassifier(gen TextGenerator) *Classifier {
	return &Classifier{gen: gen}
}

// Classify asks the model for one of FLOWCHART, GRAPH or NONE. Any other
// answer yields NONE. On a generation error Classify returns NONE together
// with the error so the caller can log it.
func (c *Classifier) Classify(ctx context.Context, simplified string, keyPoints []string) (types.VisualIntent, error) {
	prompt := fmt.Sprintf(classifyPromptTemplate, simplified, strings.Join(keyPoints, "\n"))
	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return types.VisualNone, fmt.Errorf("visual: classify: %w", err)
	}
	return ParseIntent(raw), nil
}

// ParseIntent maps a one-word model answer to a [types.VisualIntent].
// Surrounding whitespace, quotes, backticks, asterisks and trailing
// punctuation are ignored; anything else yields NONE.
func ParseIntent(raw string) types.VisualIntent {
	word := strings.Trim(strings.TrimSpace(raw), " \t\r\n\"'`*.!:")
	switch types.VisualIntent(strings.ToUpper(word)) {
	case types.VisualFlowchart:
		return types.VisualFlowchart
	case types.VisualGraph:
		return types.VisualGraph
	default:
		return types.VisualNone
	}
}

// Generator asks a model for a diagram body.
type Generator struct {
	gen TextGenerator
}

// NewGenerator returns a Generator backed by gen.
func NewGenerator(gen TextGenerator) *Generator {
	return &Generator{gen: gen}
}

// Generate requests a diagram of kind and returns its body. ok is false when
// the model answered NONE or sent no recognisable diagram header.
func (g *Generator) Generate(ctx context.Context, simplified string, keyPoints []string, kind diagram.Kind) (body string, ok bool, err error) {
	header := "flowchart TD"
	if kind == diagram.KindGraph {
		header = "graph TD"
	}
	prompt := fmt.Sprintf(diagramPromptTemplate, header, simplified, strings.Join(keyPoints, "\n"))
	raw, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return "", false, fmt.Errorf("visual: generate diagram: %w", err)
	}
	body, ok = ExtractDiagram(raw)
	return body, ok, nil
}

// ExtractDiagram drops everything before the first line starting with
// "flowchart" or "graph" (any case) along with fence lines, and returns the
// remaining lines trimmed. ok is false for the NONE sentinel or when no
// such line exists.
func ExtractDiagram(raw string) (body string, ok bool) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "`")
	if strings.EqualFold(strings.TrimSpace(trimmed), "NONE") {
		return "", false
	}

	var lines []string
	started := false
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "```") {
			continue
		}
		if !started {
			lower := strings.ToLower(l)
			if !strings.HasPrefix(lower, "flowchart") && !strings.HasPrefix(lower, "graph") {
				continue
			}
			started = true
		}
		lines = append(lines, l)
	}
	if !started {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// KindFor maps a visual intent to the diagram kind drawn for it.
func KindFor(intent types.VisualIntent) diagram.Kind {
	if intent == types.VisualGraph {
		return diagram.KindGraph
	}
	return diagram.KindFlowchart
}
