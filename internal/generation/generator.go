// Package generation calls a language model, either blocking or as a pull-based stream of fragments.
package generation

import (
	"context"
	"errors"

	"github.com/hyperjump/lexrag/internal/models"
)

// ErrorPrefix starts the text of every generation failure.
const ErrorPrefix = "Error generating response: "

// ErrEmptyCompletion is returned when the endpoint answers without choices.
var ErrEmptyCompletion = errors.New("completion has no choices")

// Error is a generation failure. Its message is the user-visible error answer.
type Error struct {
	Err error
}

func (e *Error) Error() string { return ErrorPrefix + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Generator produces an answer for a prompt. Implementations never panic on endpoint
// failure; failures come back through Completion.Err or a Failed fragment.
type Generator interface {
	Complete(ctx context.Context, req models.GenerationRequest) Completion
	Stream(ctx context.Context, req models.GenerationRequest) *Stream
}

// Completion is the result of a blocking generation. On failure Text holds the error answer.
type Completion struct {
	Text string
	Err  error
}

// OK reports whether the completion is a real answer.
func (c Completion) OK() bool { return c.Err == nil }

// Failed returns the failure completion for err.
func Failed(err error) Completion {
	var genErr *Error
	if !errors.As(err, &genErr) {
		genErr = &Error{Err: err}
	}
	return Completion{Text: genErr.Error(), Err: genErr}
}
