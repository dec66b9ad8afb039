package indexer

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/hyperjump/lexrag/internal/config"
	"github.com/hyperjump/lexrag/internal/models"
)

// SentenceSplitter breaks text into sentences in order.
type SentenceSplitter interface {
	Split(text string) []string
}

// SplitterFunc adapts a function to SentenceSplitter.
type SplitterFunc func(text string) []string

// Split calls f(text).
func (f SplitterFunc) Split(text string) []string { return f(text) }

// PunktSplitter splits English text with the Punkt sentence tokenizer.
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
	mu        sync.Mutex
}

// NewPunktSplitter loads the bundled English Punkt model.
func NewPunktSplitter() (*PunktSplitter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &PunktSplitter{tokenizer: tok}, nil
}

// Split returns the sentences of text.
func (p *PunktSplitter) Split(text string) []string {
	p.mu.Lock()
	sents := p.tokenizer.Tokenize(text)
	p.mu.Unlock()
	out := make([]string, 0, len(sents))
	for _, s := range sents {
		out = append(out, s.Text)
	}
	return out
}

var defaultSplitter = sync.OnceValue(func() SentenceSplitter {
	p, err := NewPunktSplitter()
	if err != nil {
		return SplitterFunc(splitLines)
	}
	return p
})

// splitLines treats every non-empty line as a sentence.
func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

// Chunker groups whole sentences into chunks of at most chunkSize words.
type Chunker struct {
	chunkSize int
	splitter  SentenceSplitter
}

// NewChunker creates a chunker with the given word budget.
// A nil splitter selects the English Punkt tokenizer.
func NewChunker(chunkSize int, splitter SentenceSplitter) *Chunker {
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	if splitter == nil {
		splitter = defaultSplitter()
	}
	return &Chunker{
		chunkSize: chunkSize,
		splitter:  splitter,
	}
}

// ChunkSize returns the word budget.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Chunk splits text into sentence-aligned chunks numbered from 0.
// A sentence longer than the budget is emitted whole as its own chunk.
func (c *Chunker) Chunk(text, sourceLabel string) []models.Chunk {
	var chunks []models.Chunk
	var buf []string
	count := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, models.Chunk{
			ID:          len(chunks),
			Text:        strings.Join(buf, " "),
			WordCount:   count,
			SourceLabel: sourceLabel,
		})
		buf = nil
		count = 0
	}

	for _, raw := range c.splitter.Split(text) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		words := len(strings.Fields(sentence))
		if count+words > c.chunkSize && len(buf) > 0 {
			flush()
		}
		buf = append(buf, sentence)
		count += words
	}
	flush()
	return chunks
}
