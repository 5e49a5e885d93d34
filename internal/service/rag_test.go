package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/config"
	"docchat/internal/errs"
	"docchat/internal/model"
)

// stubProvider scripts embedding failures per call and records what was
// sent to generation.
type stubProvider struct {
	embedCalls int
	embedErrs  []error
	vector     []float32

	genCalls   int
	genErr     error
	genPrompts []string
	answer     string
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.embedCalls++
	if len(p.embedErrs) > 0 {
		err := p.embedErrs[0]
		p.embedErrs = p.embedErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if p.vector == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return p.vector, nil
}

func (p *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.genCalls++
	p.genPrompts = append(p.genPrompts, prompt)
	if p.genErr != nil {
		return "", p.genErr
	}
	if p.answer == "" {
		return "stub answer", nil
	}
	return p.answer, nil
}

type stubStore struct {
	upserts   []model.Record
	upsertErr error

	queries  int
	matches  []model.Match
	queryErr error
	lastK    int
}

func (s *stubStore) Upsert(ctx context.Context, rec model.Record) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, rec)
	return nil
}

func (s *stubStore) Query(ctx context.Context, vector []float32, k int) ([]model.Match, error) {
	s.queries++
	s.lastK = k
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.matches, nil
}

func testConfig() *config.Config {
	return &config.Config{
		TopK:             3,
		RetryMaxAttempts: 2,
		RetryCooldown:    time.Millisecond,
	}
}

func newTestService(store *stubStore, provider *stubProvider) *RAGService {
	return New(store, provider, testConfig())
}

func rateLimited() error {
	return errs.New(errs.KindRateLimit, "embedding rate limited by provider")
}

func TestAsk_GroundsAnswerInRetrievedChunks(t *testing.T) {
	store := &stubStore{matches: []model.Match{
		{Text: "Annual revenue grew 12%.", Score: 0.91},
		{Text: "Costs were flat year over year.", Score: 0.72},
	}}
	provider := &stubProvider{answer: "Revenue grew 12%."}
	svc := newTestService(store, provider)

	answer, err := svc.Ask(context.Background(), "What was revenue growth?")
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 12%.", answer)

	require.Len(t, provider.genPrompts, 1)
	sent := provider.genPrompts[0]
	assert.Contains(t, sent, "Annual revenue grew 12%.", "generation must see the retrieved chunk")
	assert.Contains(t, sent, "What was revenue growth?")
	assert.Contains(t, sent, "only the content above")
	assert.Equal(t, 3, store.lastK)
}

func TestAsk_PreservesRetrievalOrderInContext(t *testing.T) {
	store := &stubStore{matches: []model.Match{
		{Text: "first", Score: 0.9},
		{Text: "second", Score: 0.8},
		{Text: "third", Score: 0.7},
	}}
	provider := &stubProvider{}
	svc := newTestService(store, provider)

	_, err := svc.Ask(context.Background(), "q")
	require.NoError(t, err)

	sent := provider.genPrompts[0]
	assert.Less(t, strings.Index(sent, "first"), strings.Index(sent, "second"))
	assert.Less(t, strings.Index(sent, "second"), strings.Index(sent, "third"))
}

func TestAsk_EmptyPromptFailsWithoutRemoteCalls(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		store := &stubStore{}
		provider := &stubProvider{}
		svc := newTestService(store, provider)

		_, err := svc.Ask(context.Background(), prompt)
		require.Error(t, err)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		assert.Zero(t, provider.embedCalls)
		assert.Zero(t, store.queries)
		assert.Zero(t, provider.genCalls)
	}
}

func TestAsk_EmbeddingRecoversAfterOneRateLimit(t *testing.T) {
	store := &stubStore{matches: []model.Match{{Text: "ctx", Score: 0.5}}}
	provider := &stubProvider{embedErrs: []error{rateLimited(), nil}}
	svc := newTestService(store, provider)

	answer, err := svc.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Equal(t, 2, provider.embedCalls, "one retry after the cooldown")
}

func TestAsk_PersistentRateLimitStopsThePipeline(t *testing.T) {
	store := &stubStore{}
	provider := &stubProvider{embedErrs: []error{rateLimited(), rateLimited()}}
	svc := newTestService(store, provider)

	_, err := svc.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errs.KindRateLimit, errs.KindOf(err))
	assert.Equal(t, 2, provider.embedCalls)
	assert.Zero(t, store.queries, "no retrieval after embedding fails")
	assert.Zero(t, provider.genCalls, "no generation after embedding fails")
}

func TestAsk_EmptyRetrievalUsesPlaceholderContext(t *testing.T) {
	store := &stubStore{matches: nil}
	provider := &stubProvider{}
	svc := newTestService(store, provider)

	answer, err := svc.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.NotEmpty(t, answer)

	require.Len(t, provider.genPrompts, 1)
	assert.Contains(t, provider.genPrompts[0], noContextFallback,
		"generation is never invoked with an empty context")
}

func TestAsk_StoreFailurePropagatesAsStorageError(t *testing.T) {
	store := &stubStore{queryErr: errs.New(errs.KindStorage, "vector query failed")}
	provider := &stubProvider{}
	svc := newTestService(store, provider)

	_, err := svc.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errs.KindStorage, errs.KindOf(err))
	assert.Zero(t, provider.genCalls)
}

func TestStep_Transitions(t *testing.T) {
	store := &stubStore{matches: []model.Match{{Text: "ctx", Score: 0.5}}}
	provider := &stubProvider{}
	svc := newTestService(store, provider)

	flow := &askFlow{prompt: "q"}
	ctx := context.Background()

	st, err := svc.step(ctx, stageStart, flow)
	require.NoError(t, err)
	assert.Equal(t, stageEmbedding, st)

	st, err = svc.step(ctx, st, flow)
	require.NoError(t, err)
	assert.Equal(t, stageRetrieving, st)
	assert.NotEmpty(t, flow.vector)

	st, err = svc.step(ctx, st, flow)
	require.NoError(t, err)
	assert.Equal(t, stageAssembling, st)
	assert.Len(t, flow.matches, 1)

	st, err = svc.step(ctx, st, flow)
	require.NoError(t, err)
	assert.Equal(t, stageGenerating, st)
	assert.Equal(t, "ctx", flow.context)

	st, err = svc.step(ctx, st, flow)
	require.NoError(t, err)
	assert.Equal(t, stageDone, st)
	assert.NotEmpty(t, flow.answer)
}

func TestStep_ValidationFailsAtStart(t *testing.T) {
	svc := newTestService(&stubStore{}, &stubProvider{})
	st, err := svc.step(context.Background(), stageStart, &askFlow{prompt: ""})
	require.Error(t, err)
	assert.Equal(t, stageFailed, st)
}

func TestIngest_EmptyExtractionFailsWithoutRemoteCalls(t *testing.T) {
	store := &stubStore{}
	provider := &stubProvider{}
	svc := newTestService(store, provider)

	_, err := svc.Ingest(context.Background(), []byte("   \n\t  "), "blank.txt")
	require.Error(t, err)
	assert.Equal(t, errs.KindExtraction, errs.KindOf(err))
	assert.Zero(t, provider.embedCalls)
	assert.Empty(t, store.upserts)
}

func TestIngest_MissingInputIsValidation(t *testing.T) {
	svc := newTestService(&stubStore{}, &stubProvider{})

	_, err := svc.Ingest(context.Background(), nil, "doc.txt")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = svc.Ingest(context.Background(), []byte("text"), "")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestIngest_StoresTruncatedExcerpt(t *testing.T) {
	store := &stubStore{}
	provider := &stubProvider{}
	svc := newTestService(store, provider)

	long := strings.Repeat("revenue growth report ", 500) // well past both limits
	res, err := svc.Ingest(context.Background(), []byte(long), "report.txt")
	require.NoError(t, err)
	require.Len(t, res.ChunkIDs, 1)
	require.Len(t, store.upserts, 1)

	rec := store.upserts[0]
	assert.Equal(t, res.ChunkIDs[0], rec.ID)
	assert.True(t, strings.HasPrefix(rec.ID, "pdf-"))
	assert.Equal(t, "report.txt", rec.Filename)
	assert.Equal(t, excerptLimit, utf8.RuneCountInString(rec.Text))
	assert.NotEmpty(t, rec.Vector)
}

func TestIngest_SameDocumentTwiceGetsDistinctIDs(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store, &stubProvider{})

	doc := []byte("Annual revenue grew 12%.")
	first, err := svc.Ingest(context.Background(), doc, "report.txt")
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), doc, "report.txt")
	require.NoError(t, err)

	assert.NotEqual(t, first.ChunkIDs[0], second.ChunkIDs[0])
}

func TestIngest_EmbeddingRateLimitSurfacesInSingleMode(t *testing.T) {
	store := &stubStore{}
	provider := &stubProvider{embedErrs: []error{rateLimited(), rateLimited()}}
	svc := newTestService(store, provider)

	_, err := svc.Ingest(context.Background(), []byte("some document text"), "doc.txt")
	require.Error(t, err)
	assert.Equal(t, errs.KindRateLimit, errs.KindOf(err))
	assert.Empty(t, store.upserts)
}

func TestIngest_ChunkedModeStoresEveryWindow(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 4
	cfg.ChunkOverlap = 1

	store := &stubStore{}
	provider := &stubProvider{}
	svc := New(store, provider, cfg)

	text := "one two three four five six seven eight nine ten"
	res, err := svc.Ingest(context.Background(), []byte(text), "doc.txt")
	require.NoError(t, err)

	assert.Greater(t, len(res.ChunkIDs), 1)
	assert.Len(t, store.upserts, len(res.ChunkIDs))
	for _, rec := range store.upserts {
		assert.Equal(t, "doc.txt", rec.Filename)
	}
}

func TestIngest_ChunkedModeSkipsFailedWindows(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 2
	cfg.ChunkOverlap = 0
	cfg.RetryMaxAttempts = 1

	store := &stubStore{}
	provider := &stubProvider{embedErrs: []error{nil, errs.New(errs.KindProvider, "embedding failed")}}
	svc := New(store, provider, cfg)

	res, err := svc.Ingest(context.Background(), []byte("one two three four five six"), "doc.txt")
	require.NoError(t, err)
	assert.Len(t, res.ChunkIDs, 2, "the failed window is skipped, the rest are stored")
}

func TestAssembleContext(t *testing.T) {
	t.Run("joins in retrieval order", func(t *testing.T) {
		got := assembleContext([]model.Match{
			{Text: "a", Score: 0.9},
			{Text: "b", Score: 0.8},
		})
		assert.Equal(t, "a\n\nb", got)
	})

	t.Run("empty retrieval yields placeholder", func(t *testing.T) {
		assert.Equal(t, noContextFallback, assembleContext(nil))
		assert.Equal(t, noContextFallback, assembleContext([]model.Match{}))
	})

	t.Run("blank excerpts are skipped", func(t *testing.T) {
		got := assembleContext([]model.Match{
			{Text: "", Score: 0.9},
			{Text: "only", Score: 0.8},
		})
		assert.Equal(t, "only", got)
	})
}
