// Package ai diagnoses replay failures with an LLM. Given the failing step,
// the error, and the page DOM, a provider explains the likely cause and
// suggests a fix for the recording.
package ai

import (
	"context"
	"fmt"

	"github.com/recorder-dev/recorder-runner/pkg/executor"
)

// Provider defines the interface for AI failure analysis.
type Provider interface {
	// Name returns the provider name for logging and reports.
	Name() string
	// Analyze returns a markdown diagnosis of the failure.
	Analyze(ctx context.Context, req executor.AnalysisRequest) (string, error)
}

// NewProvider creates an AI provider based on the provider name.
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewAnthropicProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: anthropic, openai)", name)
	}
}
