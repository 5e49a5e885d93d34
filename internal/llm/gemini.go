package llm

import (
	"context"
	"strings"

	"github.com/phuslu/log"
	"google.golang.org/genai"

	"docchat/internal/config"
	"docchat/internal/errs"
)

const (
	defaultGeminiEmbedModel = "text-embedding-004"
	defaultGeminiChatModel  = "gemini-1.5-flash-latest"

	geminiTemperature float32 = 0.2
)

// Gemini talks to the Gemini API. The free tier enforces strict
// per-minute quotas, which surface as 429/RESOURCE_EXHAUSTED failures;
// those are classified as rate limits for the retry wrapper.
type Gemini struct {
	client     *genai.Client
	embedModel string
	chatModel  string
	embedDim   int32
}

func NewGemini(ctx context.Context, cfg *config.Config) (*Gemini, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errs.New(errs.KindConfig, "GEMINI_API_KEY is required for the gemini provider")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "failed to initialize gemini client", err)
	}

	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = defaultGeminiEmbedModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = defaultGeminiChatModel
	}

	log.Info().
		Str("embed_model", embedModel).
		Str("chat_model", chatModel).
		Int("embed_dim", cfg.EmbedDim).
		Msg("gemini provider initialized")

	return &Gemini{
		client:     client,
		embedModel: embedModel,
		chatModel:  chatModel,
		embedDim:   int32(cfg.EmbedDim),
	}, nil
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{
		OutputDimensionality: &g.embedDim,
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, cfg)
	if err != nil {
		return nil, classify("embedding", err)
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, errs.New(errs.KindProvider, "no embedding returned from gemini")
	}
	return result.Embeddings[0].Values, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(geminiTemperature),
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, cfg)
	if err != nil {
		return "", classify("generation", err)
	}

	var sb strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					sb.WriteString(part.Text)
				}
			}
			if sb.Len() > 0 {
				break
			}
		}
	}
	if sb.Len() == 0 {
		return "", errs.New(errs.KindProvider, "no response generated from gemini")
	}
	return strings.TrimSpace(sb.String()), nil
}

// classify sorts a backend failure into the pipeline's taxonomy. Gemini
// reports quota exhaustion as 429 / RESOURCE_EXHAUSTED.
func classify(op string, err error) error {
	if isRateLimited(err) {
		return errs.Wrap(errs.KindRateLimit, op+" rate limited by provider", err)
	}
	return errs.Wrap(errs.KindProvider, op+" failed", err)
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "RESOURCE_EXHAUSTED") ||
		strings.Contains(s, "quota")
}
