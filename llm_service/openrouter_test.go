package llm_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orsolab/pdfcsv/pipeline_type"
)

func newTestService(t *testing.T, apiURL string) *OpenRouterService {
	t.Helper()
	return NewOpenRouterService(OpenRouterConfig{
		APIURL:      apiURL,
		APIKey:      "test-key",
		VisionModel: "test/vision-model",
		ChatModel:   "test/chat-model",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	}, zap.NewNop())
}

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestExtractText_SendsImageAndParsesContent(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		fmt.Fprint(w, completionResponse("extracted page text"))
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	got, err := s.ExtractText(context.Background(), []byte("fake png bytes"))
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}
	if got != "extracted page text" {
		t.Errorf("ExtractText = %q, want %q", got, "extracted page text")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotBody.Model != "test/vision-model" {
		t.Errorf("Model = %q, want test/vision-model", gotBody.Model)
	}

	// The user message must carry a text instruction and a base64 data URL.
	if len(gotBody.Messages) != 1 {
		t.Fatalf("Messages = %d, want 1", len(gotBody.Messages))
	}
	parts, ok := gotBody.Messages[0].Content.([]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("Message content = %#v, want two content parts", gotBody.Messages[0].Content)
	}
	imagePart, ok := parts[1].(map[string]interface{})
	if !ok {
		t.Fatalf("Second content part = %#v, want object", parts[1])
	}
	imageObj, _ := imagePart["image_url"].(map[string]interface{})
	url, _ := imageObj["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("Image URL = %q, want data:image/png;base64 prefix", url)
	}
}

func TestStructureText_UsesChatModelAndSystemPrompt(t *testing.T) {
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		fmt.Fprint(w, completionResponse("a,b\n1,2"))
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	got, err := s.StructureText(context.Background(), "raw document text")
	if err != nil {
		t.Fatalf("StructureText returned error: %v", err)
	}
	if got != "a,b\n1,2" {
		t.Errorf("StructureText = %q, want %q", got, "a,b\n1,2")
	}
	if gotBody.Model != "test/chat-model" {
		t.Errorf("Model = %q, want test/chat-model", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("Messages = %#v, want system + user", gotBody.Messages)
	}
	user, _ := gotBody.Messages[1].Content.(string)
	if !strings.Contains(user, "raw document text") {
		t.Errorf("User prompt %q does not embed the document text", user)
	}
}

func TestStructureText_StripsCodeFence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionResponse("```csv\na,b\n1,2\n```"))
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	got, err := s.StructureText(context.Background(), "text")
	if err != nil {
		t.Fatalf("StructureText returned error: %v", err)
	}
	if got != "a,b\n1,2" {
		t.Errorf("StructureText = %q, want fences removed", got)
	}
}

func TestCall_RetriesAfterRateLimit(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionResponse("ok"))
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	got, err := s.StructureText(context.Background(), "text")
	if err != nil {
		t.Fatalf("StructureText returned error: %v", err)
	}
	if got != "ok" {
		t.Errorf("StructureText = %q, want ok", got)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Upstream calls = %d, want 2 (one rate-limited, one retried)", n)
	}
}

func TestCall_RateLimitExhaustsRetries(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	_, err := s.StructureText(context.Background(), "text")
	if err == nil {
		t.Fatal("Expected an error but got none")
	}
	pe, ok := pipeline_type.AsError(err)
	if !ok || pe.Kind != pipeline_type.KindExternalService {
		t.Errorf("Expected external service error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Upstream calls = %d, want MaxRetries (3)", n)
	}
}

func TestCall_UpstreamErrorSurfacesAsExternalServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "model exploded", "code": 500}}`)
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	_, err := s.ExtractText(context.Background(), []byte("png"))
	if err == nil {
		t.Fatal("Expected an error but got none")
	}
	pe, ok := pipeline_type.AsError(err)
	if !ok || pe.Kind != pipeline_type.KindExternalService {
		t.Fatalf("Expected external service error, got %v", err)
	}

	var httpErr *OpenRouterHttpError
	if !errors.As(err, &httpErr) {
		t.Fatal("Expected an OpenRouterHttpError in the chain")
	}
	if httpErr.Message != "model exploded" {
		t.Errorf("Message = %q, want upstream message", httpErr.Message)
	}
}

func TestCall_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	_, err := s.ExtractText(context.Background(), []byte("png"))
	if err == nil {
		t.Fatal("Expected an error but got none")
	}
	pe, ok := pipeline_type.AsError(err)
	if !ok || pe.Kind != pipeline_type.KindExternalService {
		t.Errorf("Expected external service error, got %v", err)
	}
}

func TestCall_MissingAPIKey(t *testing.T) {
	s := NewOpenRouterService(OpenRouterConfig{APIKey: ""}, zap.NewNop())

	_, err := s.ExtractText(context.Background(), []byte("png"))
	if err == nil {
		t.Fatal("Expected an error but got none")
	}
	pe, ok := pipeline_type.AsError(err)
	if !ok || pe.Kind != pipeline_type.KindConfiguration {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no fence", "a,b\n1,2", "a,b\n1,2"},
		{"csv fence", "```csv\na,b\n1,2\n```", "a,b\n1,2"},
		{"bare fence", "```\na,b\n```", "a,b"},
		{"fence with preamble", "Here you go:\n```csv\na,b\n```", "a,b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.content); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
