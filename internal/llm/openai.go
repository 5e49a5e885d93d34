package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/phuslu/log"
	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/config"
	"docchat/internal/errs"
)

const (
	defaultOpenAIEmbedModel = "text-embedding-nomic-embed-text-v1.5"
	defaultOpenAIChatModel  = "google/gemma-3n-e4b"

	openAITemperature float32 = 0.2
)

// OpenAI talks to any OpenAI-compatible endpoint (OpenAI itself, or a
// local LM Studio / Ollama server).
type OpenAI struct {
	client     *openai.Client
	embedModel string
	chatModel  string
}

func NewOpenAI(cfg *config.Config) *OpenAI {
	oaiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBase != "" {
		oaiCfg.BaseURL = cfg.OpenAIBase
	}

	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = defaultOpenAIEmbedModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = defaultOpenAIChatModel
	}

	log.Info().
		Str("base_url", oaiCfg.BaseURL).
		Str("embed_model", embedModel).
		Str("chat_model", chatModel).
		Msg("openai-compatible provider initialized")

	return &OpenAI{
		client:     openai.NewClientWithConfig(oaiCfg),
		embedModel: embedModel,
		chatModel:  chatModel,
	}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, classifyOpenAI("embedding", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errs.New(errs.KindProvider, "no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: openAITemperature,
	})
	if err != nil {
		return "", classifyOpenAI("generation", err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.KindProvider, "no response generated")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAI(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errs.Wrap(errs.KindRateLimit, op+" rate limited by provider", err)
	}
	return errs.Wrap(errs.KindProvider, op+" failed", err)
}
