package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-enrichment/internal/config"
)

func testAIConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		APIKey:      "test-key",
		Model:       "test-model",
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		Temperature: 0.3,
		MaxTokens:   500,
	}
}

func chatServer(t *testing.T, status int, content string, inspect func(*http.Request, chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if inspect != nil {
			inspect(r, body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Complete(t *testing.T) {
	var gotReq chatRequest
	var gotAuth, gotPath string
	srv := chatServer(t, http.StatusOK, `{"category":"Billing"}`, func(r *http.Request, body chatRequest) {
		gotReq = body
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
	})

	client := NewOpenAIClient(testAIConfig(srv.URL), srv.Client())
	got, err := client.Complete(context.Background(), "system text", "user text")
	require.NoError(t, err)

	assert.Equal(t, `{"category":"Billing"}`, got)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "test-model", gotReq.Model)
	assert.InDelta(t, 0.3, gotReq.Temperature, 0.0001)
	assert.Equal(t, 500, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "system text"}, gotReq.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "user text"}, gotReq.Messages[1])
}

func TestOpenAIClient_NonSuccessStatus(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "", nil)

	client := NewOpenAIClient(testAIConfig(srv.URL), srv.Client())
	_, err := client.Complete(context.Background(), "s", "u")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewOpenAIClient(testAIConfig(srv.URL), srv.Client())
	_, err := client.Complete(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestOpenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testAIConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewOpenAIClient(cfg, nil)
	_, err := client.Complete(context.Background(), "s", "u")
	assert.Error(t, err)
}
