// Package rag answers questions by retrieving chunks, assembling a grounding prompt,
// and generating an answer with source previews.
package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/config"
	"github.com/hyperjump/lexrag/internal/generation"
	"github.com/hyperjump/lexrag/internal/metrics"
	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/prompt"
	"github.com/hyperjump/lexrag/pkg/utils"
)

// ErrorPrefix starts the text of every retrieval failure answer.
const ErrorPrefix = "Error processing query: "

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// QueryError is a failure before generation started. Its message is the user-visible answer.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return ErrorPrefix + e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// Retriever returns the chunks most similar to a query. *retrieval.Retriever implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error)
}

// Options configures a Service. Zero TopK, MaxTokens and PreviewLength take the defaults.
type Options struct {
	TopK          int
	MaxTokens     int
	Temperature   float32
	PreviewLength int
}

// StreamingAnswer is an answer delivered as fragments. Sources are known before the
// stream is consumed. Err is set when the question failed before generation.
type StreamingAnswer struct {
	Stream  *generation.Stream
	Sources []string
	Err     error
}

// Service wires retrieval, prompt assembly, and generation. It is safe for concurrent use.
type Service struct {
	retriever Retriever
	generator generation.Generator
	opts      Options
	logger    *zap.Logger
}

// NewService creates a service. logger may be nil.
func NewService(retriever Retriever, generator generation.Generator, opts Options, logger *zap.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = config.DefaultTopK
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = config.DefaultMaxTokens
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = config.DefaultPreviewLength
	}
	return &Service{
		retriever: retriever,
		generator: generator,
		opts:      opts,
		logger:    utils.OrNop(logger),
	}
}

// Answer answers question in one blocking call. It never panics; failures come back
// as an Answer with a failure Outcome and no sources.
func (s *Service) Answer(ctx context.Context, question string) (ans *models.Answer) {
	stage := models.OutcomeRetrievalFailed
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic answering question", zap.Any("panic", r), zap.Stack("stack"))
			err := fmt.Errorf("panic: %v", r)
			if stage == models.OutcomeRetrievalFailed {
				ans = retrievalFailure(err)
			} else {
				ans = generationFailure(generation.Failed(err))
			}
		}
		metrics.QueriesTotal.WithLabelValues("blocking", string(ans.Outcome)).Inc()
	}()

	chunks, err := s.retrieve(ctx, question)
	if err != nil {
		return retrievalFailure(err)
	}

	stage = models.OutcomeGenerationFailed
	completion := s.generator.Complete(ctx, s.request(chunks, question))
	if !completion.OK() {
		s.logger.Warn("generation failed", zap.Error(completion.Err))
		return generationFailure(completion)
	}
	return &models.Answer{
		Text:    completion.Text,
		Sources: s.sources(chunks),
		Outcome: models.OutcomeAnswered,
	}
}

// AnswerStream answers question as a stream of fragments. A retrieval failure
// yields a stream with a single failed fragment and no sources.
func (s *Service) AnswerStream(ctx context.Context, question string) (sa *StreamingAnswer) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic answering question", zap.Any("panic", r), zap.Stack("stack"))
			sa = s.streamFailure(fmt.Errorf("panic: %v", r))
		}
	}()

	chunks, err := s.retrieve(ctx, question)
	if err != nil {
		return s.streamFailure(err)
	}
	return &StreamingAnswer{
		Stream:  s.observe(s.generator.Stream(ctx, s.request(chunks, question))),
		Sources: s.sources(chunks),
	}
}

func (s *Service) retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	start := time.Now()
	result, err := s.retriever.Retrieve(ctx, question, s.opts.TopK)
	if err != nil {
		s.logger.Warn("retrieval failed", zap.String("question", utils.Truncate(question, 120)), zap.Error(err))
		return nil, err
	}
	s.logger.Debug("retrieved chunks",
		zap.String("question", utils.Truncate(question, 120)),
		zap.Int("count", len(result)),
		zap.Duration("took", time.Since(start)))
	return result.Chunks(), nil
}

func (s *Service) request(chunks []models.Chunk, question string) models.GenerationRequest {
	return models.GenerationRequest{
		Prompt:      prompt.Assemble(chunks, question),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	}
}

// sources returns chunk previews in retrieval order.
func (s *Service) sources(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = utils.Preview(ch.Text, s.opts.PreviewLength)
	}
	return out
}

// outcomeAbandoned labels streams closed by the caller before they ended.
const outcomeAbandoned models.Outcome = "abandoned"

// observe records the stream's outcome and turns panics in the generator's stream
// into a failed fragment.
func (s *Service) observe(inner *generation.Stream) *generation.Stream {
	var once sync.Once
	count := func(outcome models.Outcome) {
		once.Do(func() {
			metrics.QueriesTotal.WithLabelValues("streaming", string(outcome)).Inc()
		})
	}
	recv := func() (text string, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in answer stream", zap.Any("panic", r), zap.Stack("stack"))
				count(models.OutcomeGenerationFailed)
				text, err = "", &generation.Error{Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		if !inner.Next() {
			count(models.OutcomeAnswered)
			return "", io.EOF
		}
		f := inner.Fragment()
		if f.Failed {
			count(models.OutcomeGenerationFailed)
			return "", inner.Err()
		}
		return f.Text, nil
	}
	closer := func() error {
		count(outcomeAbandoned)
		return inner.Close()
	}
	return generation.NewStream(recv, closer)
}

func (s *Service) streamFailure(err error) *StreamingAnswer {
	qe := &QueryError{Err: err}
	metrics.QueriesTotal.WithLabelValues("streaming", string(models.OutcomeRetrievalFailed)).Inc()
	return &StreamingAnswer{
		Stream:  generation.FailedStream(qe),
		Sources: []string{},
		Err:     qe,
	}
}

func retrievalFailure(err error) *models.Answer {
	qe := &QueryError{Err: err}
	return &models.Answer{
		Text:    qe.Error(),
		Sources: []string{},
		Outcome: models.OutcomeRetrievalFailed,
		Err:     qe,
	}
}

func generationFailure(c generation.Completion) *models.Answer {
	return &models.Answer{
		Text:    c.Text,
		Sources: []string{},
		Outcome: models.OutcomeGenerationFailed,
		Err:     c.Err,
	}
}
