package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(t *testing.T, r *http.Request) completionRequest {
	t.Helper()
	var payload completionRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	return payload
}

func writeCompletion(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := completionBody(t, r)
		assert.Equal(t, "primary-model", payload.Model)
		assert.Equal(t, 256, payload.MaxTokens)
		writeCompletion(w, "the answer")
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "primary-model")
	result, err := client.Complete(context.Background(), Request{
		Messages:  []Message{{Role: "user", Content: "question"}},
		MaxTokens: 256,
	})

	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Content)
	assert.Equal(t, "primary-model", result.Model)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 15, result.Usage.TotalTokens)
}

func TestCompleteFallsBackToSecondModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := completionBody(t, r)
		if payload.Model == "primary-model" {
			http.Error(w, "internal failure", http.StatusInternalServerError)
			return
		}
		writeCompletion(w, "fallback answer")
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "primary-model", "fallback-model")
	result, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "question"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "fallback answer", result.Content)
	assert.Equal(t, "fallback-model", result.Model)
}

func TestCompleteRetriesWhileModelIsLoading(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":          "model is currently loading",
				"estimated_time": 0.01,
			})
			return
		}
		writeCompletion(w, "loaded now")
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "slow-model")
	result, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "question"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "loaded now", result.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteModelOverrideSkipsChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := completionBody(t, r)
		assert.Equal(t, "override-model", payload.Model)
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "primary-model", "fallback-model")
	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "question"}},
		Model:    "override-model",
	})
	require.NoError(t, err)
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	client := NewClient("http://localhost:0", "test-key", "m")
	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "   "}},
	})
	require.Error(t, err)
}

func TestNewClientFromEnvRequiresAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	_, err := NewClientFromEnv()
	require.Error(t, err)
}

func TestSecondaryModelFallsBackToPrimary(t *testing.T) {
	single := NewClient("http://localhost:0", "k", "only-model")
	assert.Equal(t, "only-model", single.SecondaryModel())

	chained := NewClient("http://localhost:0", "k", "first", "second")
	assert.Equal(t, "first", chained.PrimaryModel())
	assert.Equal(t, "second", chained.SecondaryModel())
}

func TestCompleteStreamAssemblesDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "stream-model")
	var deltas []string
	result, err := client.CompleteStream(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(delta StreamDelta) error {
		if delta.Content != "" {
			deltas = append(deltas, delta.Content)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello", result.Content)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}
