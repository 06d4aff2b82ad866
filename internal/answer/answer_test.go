package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmerrors "github.com/coursemind/coursemind/internal/errors"
)

func TestOllamaGenerator_Generate(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Prompt

		json.NewEncoder(w).Encode(generateResponse{Response: "Rebuild the image [1]."})
	}))
	defer server.Close()

	g := NewOllamaGenerator(Config{Host: server.URL})

	answer, err := g.Generate(context.Background(), "why does docker fail?", "[1] discussions\nTry rebuilding the image.")
	require.NoError(t, err)
	assert.Equal(t, "Rebuild the image [1].", answer)

	assert.True(t, strings.Contains(gotPrompt, "why does docker fail?"))
	assert.True(t, strings.Contains(gotPrompt, "Try rebuilding the image."))
}

func TestOllamaGenerator_EmptyQuestionRejected(t *testing.T) {
	g := NewOllamaGenerator(Config{Host: "http://localhost:1"})

	_, err := g.Generate(context.Background(), "  ", "some context")
	require.Error(t, err)
	assert.Equal(t, cmerrors.ErrCodeQueryEmpty, cmerrors.GetCode(err))
}

func TestOllamaGenerator_EmptyContextShortCircuits(t *testing.T) {
	// No server needed: empty context never reaches the model.
	g := NewOllamaGenerator(Config{Host: "http://localhost:1"})

	answer, err := g.Generate(context.Background(), "question", "  ")
	require.NoError(t, err)
	assert.Contains(t, answer, "could not find")
}

func TestOllamaGenerator_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusNotFound)
	}))
	defer server.Close()

	g := NewOllamaGenerator(Config{Host: server.URL})

	_, err := g.Generate(context.Background(), "question", "context")
	require.Error(t, err)
	assert.Equal(t, cmerrors.ErrCodeAnswerFailed, cmerrors.GetCode(err))
}

func TestOllamaGenerator_EmptyAnswerRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "   "})
	}))
	defer server.Close()

	g := NewOllamaGenerator(Config{Host: server.URL})

	_, err := g.Generate(context.Background(), "question", "context")
	require.Error(t, err)
	assert.Equal(t, cmerrors.ErrCodeAnswerFailed, cmerrors.GetCode(err))
}
