package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coursemind/coursemind/internal/answer"
	"github.com/coursemind/coursemind/internal/collections"
	"github.com/coursemind/coursemind/internal/config"
	"github.com/coursemind/coursemind/internal/retrieval"
	"github.com/coursemind/coursemind/pkg/version"
)

// CollectionLister reports the collections available in the corpus.
// *collections.Manager satisfies it.
type CollectionLister interface {
	Collections(ctx context.Context) ([]collections.Info, error)
}

// Server is the MCP server for CourseMind.
// It bridges AI clients with the course retrieval pipeline.
type Server struct {
	mcp       *mcp.Server
	router    *retrieval.Router
	generator answer.Generator
	lister    CollectionLister
	config    *config.Config
	logger    *slog.Logger

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// AskInput defines the input schema for the ask_course tool.
type AskInput struct {
	Question string   `json:"question" jsonschema:"the course question to answer"`
	Strategy string   `json:"strategy,omitempty" jsonschema:"retrieval strategy: classification, keyword, or unified"`
	Alpha    *float64 `json:"alpha,omitempty" jsonschema:"semantic weight between 0 and 1, default 0.5"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"maximum number of excerpts, default 5"`
}

// AskOutput defines the output schema for the ask_course tool.
type AskOutput struct {
	Answer      string   `json:"answer" jsonschema:"the generated answer grounded in course content"`
	Sources     []string `json:"sources" jsonschema:"source identifiers cited by the answer"`
	Strategy    string   `json:"strategy" jsonschema:"the strategy that produced the context"`
	Collections []string `json:"collections" jsonschema:"collections actually searched"`
	FellBack    bool     `json:"fell_back,omitempty" jsonschema:"true if the unified fallback was used"`
}

// SearchInput defines the input schema for the search_course tool.
type SearchInput struct {
	Query    string   `json:"query" jsonschema:"the search query to execute"`
	Strategy string   `json:"strategy,omitempty" jsonschema:"retrieval strategy: classification, keyword, or unified"`
	Alpha    *float64 `json:"alpha,omitempty" jsonschema:"semantic weight between 0 and 1, default 0.5"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 5"`
}

// SearchOutput defines the output schema for the search_course tool.
type SearchOutput struct {
	Results     []SearchResultOutput `json:"results" jsonschema:"list of ranked search results"`
	Strategy    string               `json:"strategy" jsonschema:"the strategy that produced the results"`
	Collections []string             `json:"collections" jsonschema:"collections actually searched"`
	FellBack    bool                 `json:"fell_back,omitempty" jsonschema:"true if the unified fallback was used"`
}

// SearchResultOutput defines a single ranked result.
type SearchResultOutput struct {
	Collection  string  `json:"collection" jsonschema:"source collection id"`
	Title       string  `json:"title,omitempty" jsonschema:"document title"`
	URL         string  `json:"url,omitempty" jsonschema:"source URL when available"`
	Content     string  `json:"content" jsonschema:"matched content snippet"`
	ContentType string  `json:"content_type,omitempty" jsonschema:"content type: discussion, overview, reference, or misc"`
	Relevance   float64 `json:"relevance" jsonschema:"final boosted relevance score"`
	Mode        string  `json:"mode" jsonschema:"scoring mode: hybrid or keyword"`
}

// StatsInput defines the input schema for the retrieval_stats tool.
type StatsInput struct{}

// StatsOutput defines the output schema for the retrieval_stats tool.
type StatsOutput struct {
	Strategies  []StrategyStatsOutput  `json:"strategies" jsonschema:"per-strategy performance counters"`
	Collections []CollectionInfoOutput `json:"collections" jsonschema:"indexed collections and their document counts"`
}

// CollectionInfoOutput describes one indexed collection.
type CollectionInfoOutput struct {
	Name     string `json:"name" jsonschema:"collection id"`
	DocCount int    `json:"doc_count" jsonschema:"number of indexed documents"`
}

// StrategyStatsOutput carries counters for one strategy.
type StrategyStatsOutput struct {
	Strategy       string  `json:"strategy" jsonschema:"strategy name"`
	Calls          int64   `json:"calls" jsonschema:"number of completed attempts"`
	AvgTimeMs      float64 `json:"avg_time_ms" jsonschema:"average wall time in milliseconds"`
	AvgResultCount float64 `json:"avg_result_count" jsonschema:"running average result count"`
}

// NewServer creates a new MCP server wired to the retrieval router and
// answer generator. The generator may be nil, in which case ask_course
// reports answer generation as unavailable.
func NewServer(router *retrieval.Router, generator answer.Generator, lister CollectionLister, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if router == nil {
		return nil, errors.New("retrieval router is required")
	}
	if lister == nil {
		return nil, errors.New("collection lister is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:    router,
		generator: generator,
		lister:    lister,
		config:    cfg,
		logger:    logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CourseMind",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "CourseMind", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "ask_course",
			Description: "Answer a course question with citations. Retrieves relevant excerpts from the indexed course corpus and generates a grounded answer. Use this when the student wants an explanation, not raw search results.",
		},
		{
			Name:        "search_course",
			Description: "Search the course corpus directly. Returns ranked excerpts with collection, title, and relevance so you can inspect what the retrieval pipeline found. Supports strategy and alpha overrides.",
		},
		{
			Name:        "retrieval_stats",
			Description: "Report per-strategy retrieval performance: call counts, average latency, and average result volume. Use this to decide which strategy suits the current corpus.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask_course",
		Description: "Answer a course question with citations. Retrieves relevant excerpts from the indexed course corpus and generates a grounded answer. Use this when the student wants an explanation, not raw search results.",
	}, s.mcpAskHandler)
	s.logger.Debug("Registered tool", slog.String("name", "ask_course"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_course",
		Description: "Search the course corpus directly. Returns ranked excerpts with collection, title, and relevance so you can inspect what the retrieval pipeline found. Supports strategy and alpha overrides.",
	}, s.mcpSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", "search_course"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieval_stats",
		Description: "Report per-strategy retrieval performance: call counts, average latency, and average result volume. Use this to decide which strategy suits the current corpus.",
	}, s.mcpStatsHandler)
	s.logger.Debug("Registered tool", slog.String("name", "retrieval_stats"))

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

// mcpAskHandler is the MCP SDK handler for the ask_course tool.
func (s *Server) mcpAskHandler(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult,
	AskOutput,
	error,
) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, NewInvalidParamsError("question parameter is required and must be a non-empty string")
	}
	if s.generator == nil {
		return nil, AskOutput{}, &MCPError{
			Code:    ErrCodeAnswerFailed,
			Message: "Answer generation is not configured. Use search_course instead.",
		}
	}
	if input.Alpha != nil && (*input.Alpha < 0 || *input.Alpha > 1) {
		return nil, AskOutput{}, NewInvalidParamsError("alpha must be between 0 and 1")
	}

	s.logger.Info("ask started",
		slog.String("question", input.Question),
		slog.String("strategy", input.Strategy))

	result := s.router.Route(ctx, retrieval.SearchRequest{
		Query:    input.Question,
		Strategy: input.Strategy,
		Alpha:    input.Alpha,
		TopK:     input.TopK,
	})
	if result.Meta.Error != "" {
		return nil, AskOutput{}, &MCPError{
			Code:    ErrCodeRetrievalFailed,
			Message: result.Meta.Error,
		}
	}

	text, err := s.generator.Generate(ctx, input.Question, result.Bundle.Context)
	if err != nil {
		return nil, AskOutput{}, MapError(err)
	}

	output := AskOutput{
		Answer:      text,
		Sources:     result.Bundle.Sources,
		Strategy:    result.Strategy.String(),
		Collections: result.Meta.Collections,
		FellBack:    result.Meta.FellBack,
	}
	return nil, output, nil
}

// mcpSearchHandler is the MCP SDK handler for the search_course tool.
func (s *Server) mcpSearchHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if input.Alpha != nil && (*input.Alpha < 0 || *input.Alpha > 1) {
		return nil, SearchOutput{}, NewInvalidParamsError("alpha must be between 0 and 1")
	}

	result := s.router.Route(ctx, retrieval.SearchRequest{
		Query:    input.Query,
		Strategy: input.Strategy,
		Alpha:    input.Alpha,
		TopK:     input.Limit,
	})

	output := SearchOutput{
		Results:     make([]SearchResultOutput, 0, len(result.Hits)),
		Strategy:    result.Strategy.String(),
		Collections: result.Meta.Collections,
		FellBack:    result.Meta.FellBack,
	}
	for _, hit := range result.Hits {
		output.Results = append(output.Results, SearchResultOutput{
			Collection:  hit.Collection,
			Title:       hit.Title,
			URL:         hit.URL,
			Content:     hit.Content,
			ContentType: string(hit.ContentType),
			Relevance:   hit.Relevance,
			Mode:        string(hit.Mode),
		})
	}
	return nil, output, nil
}

// mcpStatsHandler is the MCP SDK handler for the retrieval_stats tool.
func (s *Server) mcpStatsHandler(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	snapshot := s.router.Stats().Snapshot()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	output := StatsOutput{
		Strategies: make([]StrategyStatsOutput, 0, len(names)),
	}
	for _, name := range names {
		st := snapshot[name]
		avgMs := 0.0
		if st.Calls > 0 {
			avgMs = float64(st.TotalTime.Milliseconds()) / float64(st.Calls)
		}
		output.Strategies = append(output.Strategies, StrategyStatsOutput{
			Strategy:       name,
			Calls:          st.Calls,
			AvgTimeMs:      avgMs,
			AvgResultCount: st.AvgResultCount,
		})
	}

	infos, err := s.lister.Collections(ctx)
	if err != nil {
		s.logger.Warn("listing collections failed", slog.String("error", err.Error()))
	}
	for _, info := range infos {
		output.Collections = append(output.Collections, CollectionInfoOutput{
			Name:     info.Name,
			DocCount: info.DocCount,
		})
	}
	return nil, output, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The collections manager is owned by the
// caller and is not closed here.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("MCP server closed")
	return nil
}
