package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coursemind/coursemind/internal/errors"
)

// Default generator configuration values.
const (
	DefaultModel   = "llama3.2"
	DefaultTimeout = 60 * time.Second
)

// Generator produces an answer from a question and assembled context.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// Config holds generator configuration.
type Config struct {
	// Host is the Ollama API base URL.
	Host string

	// Model is the generation model name.
	Model string

	// Timeout bounds one generation call.
	Timeout time.Duration
}

// OllamaGenerator answers questions with an Ollama chat model, grounded on
// the retrieved context.
type OllamaGenerator struct {
	client *http.Client
	config Config
}

var _ Generator = (*OllamaGenerator)(nil)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// answerPrompt grounds the model on retrieved excerpts and asks for cited
// answers. The [n] labels match the excerpt headers in the context.
const answerPrompt = `You are a teaching assistant for an online course.
Answer the student's question using ONLY the course excerpts below.
Cite excerpts by their [n] label. If the excerpts do not contain the
answer, say so instead of guessing.

Course excerpts:
%s

Question: %s

Answer:`

// NewOllamaGenerator creates a generator.
func NewOllamaGenerator(cfg Config) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaGenerator{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// Generate answers the question from the assembled context.
func (g *OllamaGenerator) Generate(ctx context.Context, question, contextText string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New(errors.ErrCodeQueryEmpty, "question must not be empty", nil)
	}
	if strings.TrimSpace(contextText) == "" {
		return "I could not find relevant course content for this question.", nil
	}

	body, err := json.Marshal(generateRequest{
		Model:  g.config.Model,
		Prompt: fmt.Sprintf(answerPrompt, contextText, question),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.New(errors.ErrCodeAnswerFailed, "answer generation failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.New(errors.ErrCodeAnswerFailed,
			fmt.Sprintf("answer generation failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	answer := strings.TrimSpace(result.Response)
	if answer == "" {
		return "", errors.New(errors.ErrCodeAnswerFailed, "model returned empty answer", nil)
	}
	return answer, nil
}
