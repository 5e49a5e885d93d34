// Package llm wraps the embedding/generation backends. Every failure a
// backend returns is classified here, so the rest of the pipeline only
// ever sees the error kinds of the errs package — in particular, the
// rate-limit kind the retry wrapper keys off.
package llm

import (
	"context"
	"fmt"

	"docchat/internal/config"
	"docchat/internal/errs"
)

// Provider is the embedding/generation collaborator of the pipeline.
type Provider interface {
	// Embed returns a fixed-dimension vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Generate returns the model's answer to a fully assembled prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// New constructs the provider selected by cfg.Provider.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(ctx, cfg)
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, errs.New(errs.KindConfig, fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}
