// Package service holds the two pipelines of the system: turning an
// uploaded document into retrievable embedded chunks, and answering a
// question grounded in the chunks retrieved for it.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"docchat/internal/config"
	"docchat/internal/errs"
	"docchat/internal/llm"
	"docchat/internal/model"
	"docchat/internal/pdf"
	"docchat/internal/retry"
	"docchat/internal/util"
)

const (
	// embedInputLimit bounds how many runes of a document are embedded.
	// The embedding model has an input-size limit, so long documents are
	// represented by their prefix unless chunked ingestion is enabled.
	embedInputLimit = 5000
	// excerptLimit bounds the retrievable text stored with each vector.
	excerptLimit = 2000

	contextSeparator  = "\n\n"
	noContextFallback = "No relevant document content was found."

	answerPrompt = "Document content:\n%s\n\nQuestion: %s\n\nAnswer briefly using only the content above."
)

// VectorStore is the persistence collaborator. The pipeline only ever
// writes during ingestion and reads during retrieval.
type VectorStore interface {
	Upsert(ctx context.Context, rec model.Record) error
	Query(ctx context.Context, vector []float32, k int) ([]model.Match, error)
}

type RAGService struct {
	store        VectorStore
	llm          llm.Provider
	retry        retry.Policy
	topK         int
	chunkSize    int
	chunkOverlap int
}

func New(store VectorStore, provider llm.Provider, cfg *config.Config) *RAGService {
	policy := retry.Default()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.InitialDelay = cfg.RetryCooldown

	return &RAGService{
		store:        store,
		llm:          provider,
		retry:        policy,
		topK:         cfg.TopK,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}
}

// Ingest extracts text from an uploaded document, embeds it, and stores
// the resulting records. With chunking disabled (chunk size 0) a single
// record is stored for the document's leading text.
func (s *RAGService) Ingest(ctx context.Context, data []byte, filename string) (*model.IngestResult, error) {
	if len(data) == 0 {
		return nil, errs.New(errs.KindValidation, "file is required")
	}
	if filename == "" {
		return nil, errs.New(errs.KindValidation, "filename is required")
	}

	text, err := pdf.ExtractText(data, filename)
	if err != nil {
		return nil, errs.Wrap(errs.KindExtraction, "failed to extract text from document", err)
	}
	text = pdf.Sanitize(text)
	if text == "" {
		return nil, errs.New(errs.KindExtraction, "document contains no extractable text")
	}

	var parts []string
	if s.chunkSize > 0 {
		parts = pdf.ChunkByWords(text, s.chunkSize, s.chunkOverlap)
	} else {
		parts = []string{util.TruncateRunes(text, embedInputLimit)}
	}

	ids := make([]string, 0, len(parts))
	var lastErr error
	for i, part := range parts {
		vec, err := retry.Value(ctx, s.retry, func() ([]float32, error) {
			return s.llm.Embed(ctx, part)
		})
		if err != nil {
			if len(parts) == 1 {
				return nil, err
			}
			log.Warn().Err(err).Int("part", i).Str("doc", filename).Msg("skipping chunk, embedding failed")
			lastErr = err
			continue
		}

		rec := model.Record{
			ID:       "pdf-" + uuid.NewString(),
			Vector:   vec,
			Text:     util.TruncateRunes(part, excerptLimit),
			Filename: filename,
		}
		if err := s.store.Upsert(ctx, rec); err != nil {
			if len(parts) == 1 {
				return nil, err
			}
			log.Warn().Err(err).Int("part", i).Str("doc", filename).Msg("skipping chunk, store write failed")
			lastErr = err
			continue
		}
		ids = append(ids, rec.ID)
	}

	if len(ids) == 0 {
		return nil, lastErr
	}

	log.Info().Str("doc", filename).Int("chunks", len(ids)).Msg("document ingested")
	return &model.IngestResult{Filename: filename, ChunkIDs: ids}, nil
}

// stage is the answer flow's position. Each question moves linearly
// through the stages; any failure short-circuits to stageFailed.
type stage int

const (
	stageStart stage = iota
	stageEmbedding
	stageRetrieving
	stageAssembling
	stageGenerating
	stageDone
	stageFailed
)

func (st stage) String() string {
	switch st {
	case stageStart:
		return "start"
	case stageEmbedding:
		return "embedding"
	case stageRetrieving:
		return "retrieving"
	case stageAssembling:
		return "assembling"
	case stageGenerating:
		return "generating"
	case stageDone:
		return "done"
	case stageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// askFlow accumulates the intermediate products of one question.
type askFlow struct {
	prompt  string
	vector  []float32
	matches []model.Match
	context string
	answer  string
}

// Ask answers a question from the ingested documents: embed the prompt,
// retrieve the nearest chunks, assemble a grounding context, and ask the
// model to answer only from it.
func (s *RAGService) Ask(ctx context.Context, prompt string) (string, error) {
	flow := &askFlow{prompt: strings.TrimSpace(prompt)}

	for st := stageStart; st != stageDone; {
		next, err := s.step(ctx, st, flow)
		if err != nil {
			log.Error().Err(err).Str("stage", st.String()).Msg("answer flow failed")
			return "", err
		}
		st = next
	}
	return flow.answer, nil
}

// step advances the flow by one stage. Kept separate from Ask so each
// transition can be driven and asserted in isolation.
func (s *RAGService) step(ctx context.Context, st stage, flow *askFlow) (stage, error) {
	switch st {
	case stageStart:
		if flow.prompt == "" {
			return stageFailed, errs.New(errs.KindValidation, "prompt is required")
		}
		return stageEmbedding, nil

	case stageEmbedding:
		vec, err := retry.Value(ctx, s.retry, func() ([]float32, error) {
			return s.llm.Embed(ctx, flow.prompt)
		})
		if err != nil {
			return stageFailed, err
		}
		flow.vector = vec
		return stageRetrieving, nil

	case stageRetrieving:
		matches, err := s.store.Query(ctx, flow.vector, s.topK)
		if err != nil {
			return stageFailed, err
		}
		flow.matches = matches
		return stageAssembling, nil

	case stageAssembling:
		flow.context = assembleContext(flow.matches)
		return stageGenerating, nil

	case stageGenerating:
		answer, err := retry.Value(ctx, s.retry, func() (string, error) {
			return s.llm.Generate(ctx, buildPrompt(flow.context, flow.prompt))
		})
		if err != nil {
			return stageFailed, err
		}
		flow.answer = answer
		return stageDone, nil

	default:
		return stageFailed, errs.New(errs.KindProvider, fmt.Sprintf("answer flow reached invalid stage %q", st))
	}
}

// assembleContext joins retrieved excerpts in retrieval order. An empty
// retrieval still yields a well-formed context section for the prompt.
func assembleContext(matches []model.Match) string {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	if len(texts) == 0 {
		return noContextFallback
	}
	return strings.Join(texts, contextSeparator)
}

func buildPrompt(context, question string) string {
	return fmt.Sprintf(answerPrompt, context, question)
}
