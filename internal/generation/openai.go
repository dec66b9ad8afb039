package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/metrics"
	"github.com/hyperjump/lexrag/internal/models"
)

// OpenAIConfig holds the chat completion endpoint settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty uses the client default
	Model   string
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint (Groq by default).
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIGenerator creates a generator. logger may be nil.
func NewOpenAIGenerator(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("generation model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

func (g *OpenAIGenerator) request(req models.GenerationRequest, stream bool) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		// go-openai drops a zero temperature from the request body.
		temperature = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}

// Complete sends the prompt and waits for the full answer.
func (g *OpenAIGenerator) Complete(ctx context.Context, req models.GenerationRequest) Completion {
	if err := req.Validate(); err != nil {
		return g.failed("blocking", err)
	}
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, g.request(req, false))
	metrics.GenerationDuration.WithLabelValues("blocking").Observe(time.Since(start).Seconds())
	if err != nil {
		return g.failed("blocking", parseAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return g.failed("blocking", ErrEmptyCompletion)
	}
	g.logger.Debug("completion received",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)))
	return Completion{Text: resp.Choices[0].Message.Content}
}

// Stream sends the prompt and returns the answer as it arrives.
func (g *OpenAIGenerator) Stream(ctx context.Context, req models.GenerationRequest) *Stream {
	if err := req.Validate(); err != nil {
		return FailedStream(g.failed("streaming", err).Err)
	}
	start := time.Now()
	upstream, err := g.client.CreateChatCompletionStream(ctx, g.request(req, true))
	if err != nil {
		return FailedStream(g.failed("streaming", parseAPIError(err)).Err)
	}
	recv := func() (string, error) {
		resp, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			metrics.GenerationDuration.WithLabelValues("streaming").Observe(time.Since(start).Seconds())
			return "", io.EOF
		}
		if err != nil {
			return "", g.failed("streaming", parseAPIError(err)).Err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Delta.Content, nil
	}
	return NewStream(recv, upstream.Close)
}

func (g *OpenAIGenerator) failed(mode string, err error) Completion {
	metrics.GenerationErrorsTotal.WithLabelValues(mode).Inc()
	g.logger.Warn("generation failed", zap.String("mode", mode), zap.Error(err))
	return Failed(err)
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("completion API error %d: %s", reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("completion API error %d: %w", reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return err
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
