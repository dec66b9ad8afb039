package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/hyperjump/lexrag/pkg/utils"
)

type textAnalyzer interface {
	Analyze([]byte) analysis.TokenStream
}

// HashingEmbedder is a local, deterministic embedder. Text runs through bleve's English
// analyzer (lowercase, stop words, possessives, stemming) and each term is hashed into one
// of dimensions signed buckets. Texts sharing stems land close together under cosine similarity.
type HashingEmbedder struct {
	dimensions int
	analyzer   textAnalyzer
}

// NewHashingEmbedder creates a hashing embedder with the given number of buckets.
func NewHashingEmbedder(dimensions int) (*HashingEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	a, err := registry.NewCache().AnalyzerNamed(en.AnalyzerName)
	if err != nil {
		return nil, fmt.Errorf("load english analyzer: %w", err)
	}
	return &HashingEmbedder{dimensions: dimensions, analyzer: a}, nil
}

// Embed returns the normalized term-hash vector for text. Text without terms yields the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, tok := range e.analyzer.Analyze([]byte(text)) {
		bucket, sign := e.bucket(tok.Term)
		vec[bucket] += sign
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

func (e *HashingEmbedder) bucket(term []byte) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write(term)
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimensions)), sign
}

// Terms returns the analyzed terms of text, in order. Useful for debugging retrieval.
func (e *HashingEmbedder) Terms(text string) []string {
	stream := e.analyzer.Analyze([]byte(text))
	terms := make([]string, len(stream))
	for i, tok := range stream {
		terms[i] = string(tok.Term)
	}
	return terms
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Identity returns "hashing-en/<dimensions>".
func (e *HashingEmbedder) Identity() string {
	return fmt.Sprintf("hashing-en/%d", e.dimensions)
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}
