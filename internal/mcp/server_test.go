package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursemind/coursemind/internal/collections"
	"github.com/coursemind/coursemind/internal/config"
	cmerrors "github.com/coursemind/coursemind/internal/errors"
	"github.com/coursemind/coursemind/internal/retrieval"
)

// mockSearcher implements retrieval.CollectionSearcher for testing.
type mockSearcher struct {
	SearchFn func(ctx context.Context, collection, query string, vector []float32, topK int) ([]retrieval.RawHit, error)
}

func (m *mockSearcher) Search(ctx context.Context, collection, query string, vector []float32, topK int) ([]retrieval.RawHit, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, collection, query, vector, topK)
	}
	return nil, nil
}

var _ retrieval.CollectionSearcher = (*mockSearcher)(nil)

// mockLister implements CollectionLister for testing.
type mockLister struct {
	infos []collections.Info
	err   error
}

func (m *mockLister) Collections(_ context.Context) ([]collections.Info, error) {
	return m.infos, m.err
}

// mockGenerator records the context it was handed.
type mockGenerator struct {
	answer   string
	err      error
	lastCtx  string
	lastWhat string
}

func (m *mockGenerator) Generate(_ context.Context, question, contextText string) (string, error) {
	m.lastWhat = question
	m.lastCtx = contextText
	return m.answer, m.err
}

func testHits(collection string, n int) []retrieval.RawHit {
	hits := make([]retrieval.RawHit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, retrieval.RawHit{
			Collection:     collection,
			Content:        fmt.Sprintf("content %s %d about docker networking and bridges", collection, i),
			Title:          fmt.Sprintf("doc-%d", i),
			ContentType:    "reference",
			TextMatchScore: int64(900_000 - i*1000),
		})
	}
	return hits
}

func newTestServer(t *testing.T, searcher retrieval.CollectionSearcher, gen *mockGenerator, lister CollectionLister) *Server {
	t.Helper()

	executor := retrieval.NewExecutor(searcher, nil, nil, retrieval.ExecutorConfig{
		Unified:  "all-content",
		Fallback: []string{"all-content"},
	}, nil)
	router := retrieval.NewRouter(
		executor,
		retrieval.NewRanker(retrieval.DefaultRankerConfig()),
		retrieval.NewAssembler(retrieval.DefaultAssemblerConfig()),
		retrieval.NewPerformanceStats(),
		retrieval.RouterConfig{DefaultStrategy: retrieval.StrategyUnified},
		nil,
	)

	srv, err := NewServer(router, gen, lister, config.NewConfig(), nil)
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresRouter(t *testing.T) {
	_, err := NewServer(nil, nil, &mockLister{}, nil, nil)
	require.Error(t, err)
}

func TestNewServer_RequiresLister(t *testing.T) {
	executor := retrieval.NewExecutor(&mockSearcher{}, nil, nil, retrieval.ExecutorConfig{Unified: "all-content"}, nil)
	router := retrieval.NewRouter(executor, retrieval.NewRanker(retrieval.DefaultRankerConfig()),
		retrieval.NewAssembler(retrieval.DefaultAssemblerConfig()), retrieval.NewPerformanceStats(),
		retrieval.RouterConfig{}, nil)

	_, err := NewServer(router, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockGenerator{answer: "ok"}, &mockLister{})

	tools := srv.ListTools()
	require.Len(t, tools, 3)
	names := make([]string, 0, len(tools))
	for _, tl := range tools {
		names = append(names, tl.Name)
	}
	assert.Contains(t, names, "ask_course")
	assert.Contains(t, names, "search_course")
	assert.Contains(t, names, "retrieval_stats")
}

func TestSearchHandler_ReturnsRankedResults(t *testing.T) {
	searcher := &mockSearcher{
		SearchFn: func(_ context.Context, collection, _ string, _ []float32, topK int) ([]retrieval.RawHit, error) {
			return testHits(collection, 3), nil
		},
	}
	srv := newTestServer(t, searcher, &mockGenerator{answer: "ok"}, &mockLister{})

	_, out, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "docker networking"})
	require.NoError(t, err)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "unified", out.Strategy)
	assert.Equal(t, "all-content", out.Results[0].Collection)
	assert.Equal(t, "keyword", out.Results[0].Mode)
	assert.Greater(t, out.Results[0].Relevance, 0.0)
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockGenerator{answer: "ok"}, &mockLister{})

	_, _, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "   "})
	require.Error(t, err)

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeInvalidParams, me.Code)
}

func TestSearchHandler_InvalidAlpha(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockGenerator{answer: "ok"}, &mockLister{})

	alpha := 1.5
	_, _, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "q", Alpha: &alpha})
	require.Error(t, err)

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeInvalidParams, me.Code)
}

func TestAskHandler_GeneratesGroundedAnswer(t *testing.T) {
	searcher := &mockSearcher{
		SearchFn: func(_ context.Context, collection, _ string, _ []float32, _ int) ([]retrieval.RawHit, error) {
			return testHits(collection, 2), nil
		},
	}
	gen := &mockGenerator{answer: "Bridges connect containers [1]."}
	srv := newTestServer(t, searcher, gen, &mockLister{})

	_, out, err := srv.mcpAskHandler(context.Background(), nil, AskInput{Question: "how do docker bridges work?"})
	require.NoError(t, err)
	assert.Equal(t, "Bridges connect containers [1].", out.Answer)
	assert.Equal(t, "how do docker bridges work?", gen.lastWhat)
	assert.NotEmpty(t, gen.lastCtx)
	assert.NotEmpty(t, out.Sources)
}

func TestAskHandler_NoGenerator(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockGenerator{answer: "ok"}, &mockLister{})
	srv.generator = nil

	_, _, err := srv.mcpAskHandler(context.Background(), nil, AskInput{Question: "anything"})
	require.Error(t, err)

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeAnswerFailed, me.Code)
}

func TestAskHandler_RetrievalFailure(t *testing.T) {
	searcher := &mockSearcher{
		SearchFn: func(_ context.Context, _, _ string, _ []float32, _ int) ([]retrieval.RawHit, error) {
			return nil, errors.New("index offline")
		},
	}
	srv := newTestServer(t, searcher, &mockGenerator{answer: "ok"}, &mockLister{})

	_, _, err := srv.mcpAskHandler(context.Background(), nil, AskInput{Question: "anything at all"})
	require.Error(t, err)

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeRetrievalFailed, me.Code)
}

func TestAskHandler_GeneratorFailure(t *testing.T) {
	searcher := &mockSearcher{
		SearchFn: func(_ context.Context, collection, _ string, _ []float32, _ int) ([]retrieval.RawHit, error) {
			return testHits(collection, 1), nil
		},
	}
	gen := &mockGenerator{err: cmerrors.New(cmerrors.ErrCodeAnswerFailed, "model unavailable", nil)}
	srv := newTestServer(t, searcher, gen, &mockLister{})

	_, _, err := srv.mcpAskHandler(context.Background(), nil, AskInput{Question: "anything"})
	require.Error(t, err)

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeAnswerFailed, me.Code)
}

func TestStatsHandler_ReportsStrategiesAndCollections(t *testing.T) {
	searcher := &mockSearcher{
		SearchFn: func(_ context.Context, collection, _ string, _ []float32, _ int) ([]retrieval.RawHit, error) {
			return testHits(collection, 2), nil
		},
	}
	lister := &mockLister{infos: []collections.Info{
		{Name: "all-content", DocCount: 40},
		{Name: "lectures", DocCount: 20},
	}}
	srv := newTestServer(t, searcher, &mockGenerator{answer: "ok"}, lister)

	_, _, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "warm up the stats"})
	require.NoError(t, err)

	_, out, err := srv.mcpStatsHandler(context.Background(), nil, StatsInput{})
	require.NoError(t, err)
	require.Len(t, out.Strategies, 1)
	assert.Equal(t, "unified", out.Strategies[0].Strategy)
	assert.Equal(t, int64(1), out.Strategies[0].Calls)
	assert.InDelta(t, 2.0, out.Strategies[0].AvgResultCount, 0.001)
	require.Len(t, out.Collections, 2)
	assert.Equal(t, "all-content", out.Collections[0].Name)
	assert.Equal(t, 40, out.Collections[0].DocCount)
}

func TestStatsHandler_ListerErrorIsNonFatal(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockGenerator{answer: "ok"}, &mockLister{err: errors.New("store closed")})

	_, out, err := srv.mcpStatsHandler(context.Background(), nil, StatsInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Collections)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"collection not found", cmerrors.New(cmerrors.ErrCodeCollectionNotFound, "no such collection", nil), ErrCodeCollectionNotFound},
		{"total failure", cmerrors.New(cmerrors.ErrCodeTotalFailure, "all strategies failed", nil), ErrCodeRetrievalFailed},
		{"answer failed", cmerrors.New(cmerrors.ErrCodeAnswerFailed, "generation failed", nil), ErrCodeAnswerFailed},
		{"empty query", cmerrors.New(cmerrors.ErrCodeQueryEmpty, "query empty", nil), ErrCodeInvalidParams},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
		{"already mapped", NewInvalidParamsError("bad"), ErrCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			if tt.err == nil {
				assert.Nil(t, mapped)
				return
			}
			require.NotNil(t, mapped)
			assert.Equal(t, tt.code, mapped.Code)
		})
	}
}

func TestServerInfo(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockGenerator{answer: "ok"}, &mockLister{})

	name, ver := srv.Info()
	assert.Equal(t, "CourseMind", name)
	assert.NotEmpty(t, ver)
	assert.NotNil(t, srv.MCPServer())
}

func TestServe_UnknownTransport(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockGenerator{answer: "ok"}, &mockLister{})

	err := srv.Serve(context.Background(), "sse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}
