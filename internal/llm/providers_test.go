package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestOpenAIProvider_Score_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer call-key" {
			t.Errorf("Expected per-call credential, got %s", r.Header.Get("Authorization"))
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		format, _ := body["response_format"].(map[string]any)
		if format["type"] != "json_schema" {
			t.Errorf("Expected json_schema response format, got %v", format["type"])
		}
		schema, _ := format["json_schema"].(map[string]any)
		if schema["name"] != SchemaName || schema["strict"] != true {
			t.Errorf("Unexpected json_schema block: %v", schema)
		}
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("Unexpected model: %v", body["model"])
		}

		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: `{"scores": [7, 3]}`,
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{PromptTokens: 90, CompletionTokens: 10, TotalTokens: 100},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "config-key", BaseURL: server.URL, Model: "gpt-4o-mini", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Score(context.Background(), ScoreRequest{
		SystemPrompt: BuildSystemPrompt(2),
		UserPrompt:   "papers",
		BatchSize:    2,
		APIKey:       "call-key",
		MaxTokens:    150,
		Temperature:  0.1,
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if resp.Content != `{"scores": [7, 3]}` {
		t.Errorf("Unexpected content: %s", resp.Content)
	}
	if resp.Usage.PromptTokens != 90 || resp.Usage.CompletionTokens != 10 || resp.Usage.TotalTokens != 100 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}
}

func TestOpenAIProvider_Score_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "Internal Server Error", "type": "server_error"}}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 1})
	if !IsTransport(err) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}

func TestOpenAIProvider_Score_MissingKey(t *testing.T) {
	provider, _ := NewOpenAIProvider(Config{})

	_, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 1})
	if !IsTransport(err) || !strings.Contains(err.Error(), "API key is required") {
		t.Fatalf("Expected missing key TransportError, got %v", err)
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestAnthropicProvider_Score_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "config-key" {
			t.Errorf("Expected config key fallback, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("Unexpected anthropic-version: %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.System, "EXACTLY 1 numbers") {
			t.Errorf("System prompt not forwarded: %q", req.System)
		}
		if req.Model != defaultAnthropicModel {
			t.Errorf("Expected default model, got %q", req.Model)
		}

		_, _ = w.Write([]byte(`{
			"model": "claude-3-5-haiku-20241022",
			"content": [{"type": "text", "text": "` + "```json\\n{\\\"scores\\\": [9]}\\n```" + `"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 40, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "config-key", BaseURL: server.URL + "/"})

	resp, err := provider.Score(context.Background(), ScoreRequest{
		SystemPrompt: BuildSystemPrompt(1),
		UserPrompt:   "papers",
		BatchSize:    1,
		MaxTokens:    150,
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	scores, err := ParseScores(resp.Content, 1)
	if err != nil || scores[0] != 9 {
		t.Errorf("Expected fenced reply to parse to [9], got %v (%v)", scores, err)
	}
	if resp.Usage.TotalTokens != 45 {
		t.Errorf("Expected total tokens 45, got %d", resp.Usage.TotalTokens)
	}
}

func TestAnthropicProvider_Score_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "bad", BaseURL: server.URL})

	_, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 1})
	if !IsTransport(err) {
		t.Fatalf("Expected TransportError, got %v", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 StatusError, got %v", err)
	}
	if statusErr.Message != "authentication_error - invalid x-api-key" {
		t.Errorf("Unexpected message: %q", statusErr.Message)
	}
}

func TestAnthropicProvider_Score_NoText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model": "m", "content": [{"type": "tool_use"}]}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})

	_, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 1})
	if !IsTransport(err) || !strings.Contains(err.Error(), "no text content") {
		t.Errorf("Expected no-text TransportError, got %v", err)
	}
}

func TestAnthropicProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet || r.URL.Path != "/v1/models/claude-test" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": "claude-test", "type": "model"}`))
	}))
	defer server.Close()

	good, _ := NewAnthropicProvider(Config{APIKey: "good", BaseURL: server.URL, Model: "claude-test"})
	if !good.IsAvailable(context.Background()) {
		t.Error("Expected available with a valid key")
	}

	bad, _ := NewAnthropicProvider(Config{APIKey: "bad", BaseURL: server.URL, Model: "claude-test"})
	if bad.IsAvailable(context.Background()) {
		t.Error("Expected unavailable with a rejected key")
	}

	noKey, _ := NewAnthropicProvider(Config{BaseURL: server.URL})
	if noKey.IsAvailable(context.Background()) {
		t.Error("Expected unavailable without a key")
	}
}

func TestOllamaProvider_Score_SendsSchemaFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		format, ok := body["format"].(map[string]any)
		if !ok || format["type"] != "object" {
			t.Errorf("Expected schema format, got %v", body["format"])
		}
		if body["stream"] != false {
			t.Errorf("Expected non-streaming request")
		}

		_, _ = w.Write([]byte(`{"model": "llama3.1", "response": " {\"scores\": [2, 4]}\n", "done": true, "prompt_eval_count": 30, "eval_count": 8}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1"})

	resp, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 2, UserPrompt: "papers"})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if resp.Content != `{"scores": [2, 4]}` {
		t.Errorf("Unexpected content: %s", resp.Content)
	}
	if resp.Usage.TotalTokens != 38 {
		t.Errorf("Expected total tokens 38, got %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaProvider_Score_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model 'nope' not found"}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "nope"})

	_, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 1})
	if !IsTransport(err) || !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Errorf("Expected not-found TransportError, got %v", err)
	}
}

func TestOllamaProvider_Score_RequiresModel(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{BaseURL: "http://127.0.0.1:1"})

	_, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 1})
	if !errors.Is(err, ErrOllamaModelRequired) {
		t.Errorf("Expected ErrOllamaModelRequired, got %v", err)
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": [{"name": "llama3.1:latest"}, {"name": "mistral:7b"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tests := []struct {
		model string
		want  bool
	}{
		{"", true},
		{"llama3.1", true},
		{"mistral:7b", true},
		{"qwen2", false},
	}

	for _, tt := range tests {
		provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: tt.model})
		if got := provider.IsAvailable(context.Background()); got != tt.want {
			t.Errorf("IsAvailable() with model %q = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestDoJSON_FallsBackToRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "" {
			t.Errorf("Bodiless request should not set Content-Type")
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	err := doJSON(context.Background(), server.Client(), apiCall{
		method:       http.MethodGet,
		url:          server.URL,
		errorMessage: func([]byte) string { return "" },
	}, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Message != "upstream unavailable" {
		t.Errorf("Unexpected error: %+v", statusErr)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"openai", "openai", false},
		{"", "openai", false},
		{"Anthropic", "anthropic", false},
		{"claude", "anthropic", false},
		{"ollama", "ollama", false},
		{"gemini", "gemini", false},
		{"mystery", "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(Config{Provider: tt.name})
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewProvider(%q) expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewProvider(%q) failed: %v", tt.name, err)
			continue
		}
		if p.Name() != tt.want {
			t.Errorf("NewProvider(%q).Name() = %q, want %q", tt.name, p.Name(), tt.want)
		}
	}
}

func TestGeminiProvider_Score_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "call-key" {
			t.Errorf("Expected per-call credential, got %q", r.Header.Get("x-goog-api-key"))
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}

		system, _ := json.Marshal(body["systemInstruction"])
		if !strings.Contains(string(system), "EXACTLY 2 numbers") {
			t.Errorf("System instruction not forwarded: %s", system)
		}

		genConfig, _ := body["generationConfig"].(map[string]any)
		if genConfig["responseMimeType"] != "application/json" {
			t.Errorf("Expected JSON MIME type, got %v", genConfig["responseMimeType"])
		}
		if _, ok := genConfig["responseSchema"].(map[string]any); !ok {
			t.Errorf("Expected response schema, got %v", genConfig["responseSchema"])
		}

		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": " {\"scores\": [6, 2]} "}]}}],
			"modelVersion": "gemini-test-001",
			"usageMetadata": {"promptTokenCount": 70, "candidatesTokenCount": 6, "totalTokenCount": 76}
		}`))
	}))
	defer server.Close()

	provider, _ := NewGeminiProvider(Config{APIKey: "config-key", BaseURL: server.URL, Model: "gemini-test"})

	resp, err := provider.Score(context.Background(), ScoreRequest{
		SystemPrompt: BuildSystemPrompt(2),
		UserPrompt:   "papers",
		BatchSize:    2,
		APIKey:       "call-key",
		MaxTokens:    150,
		Temperature:  0.1,
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if resp.Content != `{"scores": [6, 2]}` {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if resp.Model != "gemini-test-001" {
		t.Errorf("Expected model version from reply, got %q", resp.Model)
	}
	if resp.Usage.PromptTokens != 70 || resp.Usage.CompletionTokens != 6 || resp.Usage.TotalTokens != 76 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}
}

func TestGeminiProvider_Score_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "bad schema", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	provider, _ := NewGeminiProvider(Config{APIKey: "k", BaseURL: server.URL})

	_, err := provider.Score(context.Background(), ScoreRequest{BatchSize: 1})
	if !IsTransport(err) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	got := truncate("ééééé", 3)
	if got != "ééé..." {
		t.Errorf("truncate = %q, want %q", got, "ééé...")
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q, want unchanged", got)
	}
}
