// Package models defines core data structures for chunks, retrieval results, and answers.
package models

// Chunk is a contiguous run of whole sentences from one source document.
// ID is the chunk's position in its index and never changes after the index is built.
type Chunk struct {
	ID          int    `json:"id" db:"id"`
	Text        string `json:"text" db:"text"`
	WordCount   int    `json:"word_count" db:"word_count"`
	SourceLabel string `json:"source_label" db:"source_label"`
}

// ScoredChunk is a chunk paired with its similarity to a query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult holds at most K scored chunks in descending score order.
type RetrievalResult []ScoredChunk

// Chunks returns the chunks of r in order.
func (r RetrievalResult) Chunks() []Chunk {
	out := make([]Chunk, len(r))
	for i, sc := range r {
		out[i] = sc.Chunk
	}
	return out
}
