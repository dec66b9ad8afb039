package generation

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// Fragment is one piece of a streamed answer. A Failed fragment carries the error
// answer and is always the last one.
type Fragment struct {
	Text   string `json:"text"`
	Failed bool   `json:"failed,omitempty"`
}

// Stream is a finite pull iterator over answer fragments. It is not restartable and
// not safe for concurrent use.
//
//	for s.Next() {
//		f := s.Fragment()
//	}
type Stream struct {
	recv   func() (string, error)
	closer func() error

	cur       Fragment
	err       error
	done      bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream creates a stream that pulls fragments from recv until it returns io.EOF.
// Any other error ends the stream with one Failed fragment reading
// "Error generating response: <err>". closer may be nil.
func NewStream(recv func() (string, error), closer func() error) *Stream {
	return &Stream{
		recv: func() (string, error) {
			text, err := recv()
			if err == nil || errors.Is(err, io.EOF) {
				return text, err
			}
			var genErr *Error
			if errors.As(err, &genErr) {
				return "", genErr
			}
			return "", &Error{Err: err}
		},
		closer: closer,
	}
}

// FailedStream returns a stream with a single Failed fragment holding err's message as is.
func FailedStream(err error) *Stream {
	return &Stream{recv: func() (string, error) { return "", err }}
}

// StaticStream returns a stream over fixed fragments.
func StaticStream(fragments ...string) *Stream {
	i := 0
	return NewStream(func() (string, error) {
		if i >= len(fragments) {
			return "", io.EOF
		}
		i++
		return fragments[i-1], nil
	}, nil)
}

// Next advances to the next fragment. It returns false once the stream has ended,
// and keeps returning false afterwards. Empty fragments are skipped.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for {
		text, err := s.recv()
		if errors.Is(err, io.EOF) {
			s.finish()
			return false
		}
		if err != nil {
			s.err = err
			s.cur = Fragment{Text: err.Error(), Failed: true}
			s.finish()
			return true
		}
		if text == "" {
			continue
		}
		s.cur = Fragment{Text: text}
		return true
	}
}

// Fragment returns the fragment produced by the last successful Next.
func (s *Stream) Fragment() Fragment { return s.cur }

// Err returns the failure that ended the stream, if any.
func (s *Stream) Err() error { return s.err }

// Close abandons the stream. Closing the upstream call is best-effort; a
// request already in flight may still complete. Safe to call more than once.
func (s *Stream) Close() error {
	s.finish()
	return s.closeErr
}

func (s *Stream) finish() {
	s.done = true
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer()
		}
	})
}

// Collect drains s and concatenates its fragments. A failed fragment ends the text
// and its error is returned.
func Collect(s *Stream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Fragment().Text)
	}
	return b.String(), s.Err()
}
