package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// chatCompletionStub はChat Completions APIのレスポンスを返すテストサーバーを生成する
func chatCompletionStub(t *testing.T, content string, promptTokens, completionTokens int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     promptTokens,
				"completion_tokens": completionTokens,
				"total_tokens":      promptTokens + completionTokens,
			},
		})
	}))
}

func TestOpenAIClient_Complete(t *testing.T) {
	server := chatCompletionStub(t, `{"sentiment":"positive"}`, 42, 12)
	defer server.Close()

	client := NewOpenAIClient(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL + "/v1",
	})

	result, err := client.Complete(context.Background(), "analyze this", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Text != `{"sentiment":"positive"}` {
		t.Errorf("Text = %q", result.Text)
	}
	if result.PromptTokens != 42 {
		t.Errorf("PromptTokens = %d, want 42", result.PromptTokens)
	}
	if result.CompletionTokens != 12 {
		t.Errorf("CompletionTokens = %d, want 12", result.CompletionTokens)
	}
	if result.TotalTokens != 54 {
		t.Errorf("TotalTokens = %d, want 54", result.TotalTokens)
	}
}

func TestOpenAIClient_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "rate limit exceeded",
				"type":    "rate_limit_error",
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL + "/v1",
	})

	if _, err := client.Complete(context.Background(), "analyze this", 1000); err == nil {
		t.Error("expected error for 429 response")
	}
}

func TestOpenAIClient_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"choices": []map[string]any{},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL + "/v1",
	})

	if _, err := client.Complete(context.Background(), "analyze this", 1000); err == nil {
		t.Error("expected error for empty choices")
	}
}

// statusRecorderStub は記録されたステータスコードを保持する
type statusRecorderStub struct {
	codes []int
}

func (s *statusRecorderStub) RecordLLMStatus(statusCode int) {
	s.codes = append(s.codes, statusCode)
}

func TestOpenAIClient_Complete_RecordsStatus(t *testing.T) {
	server := chatCompletionStub(t, "ok", 1, 1)
	defer server.Close()

	recorder := &statusRecorderStub{}
	client := NewOpenAIClient(Config{
		APIKey:         "test-key",
		Model:          "gpt-4o-mini",
		BaseURL:        server.URL + "/v1",
		StatusRecorder: recorder,
	})

	if _, err := client.Complete(context.Background(), "analyze this", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recorder.codes) != 1 || recorder.codes[0] != http.StatusOK {
		t.Errorf("recorded codes = %v, want [200]", recorder.codes)
	}
}

func TestOpenAIClient_Complete_ContextCancelled(t *testing.T) {
	server := chatCompletionStub(t, "ok", 1, 1)
	defer server.Close()

	client := NewOpenAIClient(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL + "/v1",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Complete(ctx, "analyze this", 1000); err == nil {
		t.Error("expected error for cancelled context")
	}
}
