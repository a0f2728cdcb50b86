package resilience

import (
	"context"

	"github.com/MrWong99/mockmate/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over across a [FallbackGroup]
// of LLM backends.
type LLMFallback struct {
	*FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an LLMFallback preferring primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Complete returns the first successful completion.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, f.FallbackGroup, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
