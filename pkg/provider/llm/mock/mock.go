// Package mock is a scriptable [llm.Provider] for tests.
//
// Set Script to queue one outcome per call; the last entry repeats once the
// script runs out. Without a script every call returns CompleteResponse and
// CompleteErr.
//
//	p := &mock.Provider{Script: []mock.Result{
//	    {Err: llm.ErrTemporarilyUnavailable},
//	    {Content: `{"simplified": "..."}`},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/aurasync/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// Call is one recorded Complete invocation.
type Call struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Result is one scripted outcome. Err wins over Content.
type Result struct {
	Content string
	Usage   llm.Usage
	Err     error
}

// Provider records every request and answers from its script.
type Provider struct {
	mu sync.Mutex

	Script []Result

	// Used when Script is empty. CompleteResponse may be nil.
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	ModelCapabilities llm.ModelCapabilities

	// CompleteCalls is appended to on every call; read it after the calls
	// are done or use [Provider.Calls].
	CompleteCalls []Call
}

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.CompleteCalls)
	p.CompleteCalls = append(p.CompleteCalls, Call{Ctx: ctx, Req: req})

	if len(p.Script) == 0 {
		return p.CompleteResponse, p.CompleteErr
	}
	r := p.Script[min(n, len(p.Script)-1)]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{Content: r.Content, Usage: r.Usage}, nil
}

func (p *Provider) Capabilities() llm.ModelCapabilities { return p.ModelCapabilities }

// Calls returns how many times Complete ran.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// LastPrompt returns the final message of the latest request, or "".
func (p *Provider) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.CompleteCalls) == 0 {
		return ""
	}
	msgs := p.CompleteCalls[len(p.CompleteCalls)-1].Req.Messages
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}
