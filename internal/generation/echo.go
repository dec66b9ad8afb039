package generation

import (
	"context"
	"io"
	"strings"

	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/prompt"
)

// EchoGenerator answers with the context block of the prompt, verbatim. It needs no
// network and is deterministic, which makes it useful for dry runs and tests.
type EchoGenerator struct{}

// NewEchoGenerator creates an echo generator.
func NewEchoGenerator() *EchoGenerator { return &EchoGenerator{} }

func (EchoGenerator) answer(p string) string {
	if ctx, ok := prompt.ExtractContext(p); ok {
		return ctx
	}
	return p
}

// Complete returns the prompt's context block.
func (g EchoGenerator) Complete(ctx context.Context, req models.GenerationRequest) Completion {
	if err := req.Validate(); err != nil {
		return Failed(err)
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	return Completion{Text: g.answer(req.Prompt)}
}

// Stream returns the prompt's context block split after each space.
func (g EchoGenerator) Stream(ctx context.Context, req models.GenerationRequest) *Stream {
	if err := req.Validate(); err != nil {
		return FailedStream(&Error{Err: err})
	}
	words := strings.SplitAfter(g.answer(req.Prompt), " ")
	i := 0
	return NewStream(func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if i >= len(words) {
			return "", io.EOF
		}
		i++
		return words[i-1], nil
	}, nil)
}
