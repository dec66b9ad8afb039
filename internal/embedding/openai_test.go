package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/lexrag/internal/vector"
)

type embeddingRequestBody struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

type embeddingResponseData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

func newEmbeddingServer(t *testing.T, handler func(req embeddingRequestBody) []embeddingResponseData) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var req embeddingRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   handler(req),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	server := newEmbeddingServer(t, func(req embeddingRequestBody) []embeddingResponseData {
		if req.Model != "test-model" || req.Dimensions != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		// Answer out of order; the embedder must place vectors by index.
		data := make([]embeddingResponseData, len(req.Input))
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = embeddingResponseData{Object: "embedding", Embedding: []float32{float32(j + 1), 0}, Index: j}
		}
		return data
	})

	emb, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "test-model", Dimensions: 2})
	if err != nil {
		t.Fatal(err)
	}
	out, err := emb.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d vectors", len(out))
	}
	for i, v := range out {
		if math.Abs(vector.L2Norm(v)-1) > 1e-6 {
			t.Errorf("vector %d not normalized: %v", i, v)
		}
	}
	if emb.Identity() != "openai/test-model/2" {
		t.Errorf("Identity = %s", emb.Identity())
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	server := newEmbeddingServer(t, func(req embeddingRequestBody) []embeddingResponseData {
		return []embeddingResponseData{{Object: "embedding", Embedding: []float32{1, 0, 0}, Index: 0}}
	})
	emb, _ := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "m", Dimensions: 2})
	if _, err := emb.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	emb, _ := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "m", Dimensions: 2})
	_, err := emb.Embed(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error should carry status and message, got %v", err)
	}
}

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{Dimensions: 2}); err == nil {
		t.Error("expected error for missing model")
	}
	if _, err := NewOpenAIEmbedder(OpenAIConfig{Model: "m"}); err == nil {
		t.Error("expected error for missing dimensions")
	}
}
