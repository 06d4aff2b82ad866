package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coursemind/coursemind/internal/errors"
)

// LLMClassifier asks a small Ollama model which collections a query
// belongs to.
type LLMClassifier struct {
	client  *http.Client
	config  Config
	allowed map[string]struct{}
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
}

// classificationPrompt instructs the model to pick collections from a
// fixed list. Free-form output is filtered against that list afterwards.
const classificationPrompt = `You route questions from a course Q&A system to content collections.

Available collections:
%s

Pick the one or two collections most likely to contain the answer.
Respond with ONLY collection names, comma-separated, nothing else.

Question: %s

Collections:`

// NewLLMClassifier creates an LLM classifier.
func NewLLMClassifier(cfg Config) *LLMClassifier {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	allowed := make(map[string]struct{}, len(cfg.Collections))
	for _, c := range cfg.Collections {
		allowed[c] = struct{}{}
	}

	return &LLMClassifier{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		allowed: allowed,
	}
}

// Classify returns the collections the model picked, filtered to known
// names. An empty slice with nil error means the output was unusable.
func (l *LLMClassifier) Classify(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(classificationPrompt, strings.Join(l.config.Collections, "\n"), query)
	body, err := json.Marshal(generateRequest{
		Model:  l.config.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeClassificationFailed, "classification request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.New(errors.ErrCodeClassificationFailed,
			fmt.Sprintf("classification failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return l.parseCollections(result.Response), nil
}

// parseCollections extracts known collection names from model output,
// tolerating extra prose, casing, and stray punctuation.
func (l *LLMClassifier) parseCollections(response string) []string {
	var collections []string
	seen := make(map[string]struct{})

	for _, part := range strings.FieldsFunc(response, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(part), `"'.`))
		if _, ok := l.allowed[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		collections = append(collections, name)
	}
	return collections
}
