// Package indexer turns source documents into a persisted index: extract, preprocess, chunk, embed, persist.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/config"
	"github.com/hyperjump/lexrag/internal/embedding"
	"github.com/hyperjump/lexrag/internal/extract"
	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/retrieval"
	"github.com/hyperjump/lexrag/pkg/utils"
)

// ErrNoDocuments is returned when the inputs contain no ingestible file.
var ErrNoDocuments = errors.New("no documents to index")

// probeTopK is how many chunks a post-build probe query logs.
const probeTopK = 3

// Indexer builds and persists an index from document files.
type Indexer struct {
	embedder  embedding.Embedder
	chunker   *Chunker
	config    *config.Config
	extractor *extract.Extractor
	logger    *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithSplitter replaces the Punkt sentence splitter.
func WithSplitter(s SentenceSplitter) IndexerOption {
	return func(idx *Indexer) { idx.chunker = NewChunker(idx.config.Index.ChunkSize, s) }
}

// NewIndexer creates an indexer. extractor may be nil; when nil, files are read as plain text.
func NewIndexer(cfg *config.Config, embedder embedding.Embedder, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder:  embedder,
		chunker:   NewChunker(cfg.Index.ChunkSize, nil),
		config:    cfg,
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Document is one ingested source file.
type Document struct {
	Path  string
	Label string
	Text  string
}

// Result summarises a completed Run.
type Result struct {
	Documents  int
	Chunks     int
	Generation string
	Location   string
	Manifest   index.Manifest
}

// CollectFiles expands paths into the sorted list of regular files to ingest. Directories
// are walked recursively and filtered by extension; files named explicitly are always kept.
func (idx *Indexer) CollectFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return nil, fmt.Errorf("not a regular file: %s", abs)
			}
			add(abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !extensionAllowed(filepath.Ext(path), idx.extensions()) {
				return nil
			}
			// Resolve symlinks so only regular files are ingested
			finfo, statErr := os.Stat(path)
			if statErr != nil || !finfo.Mode().IsRegular() {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (idx *Indexer) extensions() []string {
	if idx.extractor != nil {
		return idx.extractor.SupportedExtensions()
	}
	return []string{".txt", ".md"}
}

// LoadDocument extracts and preprocesses path. An empty label means the file base name without extension.
func (idx *Indexer) LoadDocument(path, label string) (*Document, error) {
	text, err := idx.extractContent(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	if label == "" {
		label = DefaultLabel(path)
	}
	return &Document{Path: path, Label: label, Text: Preprocess(text)}, nil
}

// DefaultLabel returns the base name of path without its extension.
func DefaultLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunkDocuments chunks every document in order. Chunk IDs are positions in the combined result.
func (idx *Indexer) ChunkDocuments(docs []*Document) []models.Chunk {
	var all []models.Chunk
	for _, doc := range docs {
		chunks := idx.chunker.Chunk(doc.Text, doc.Label)
		idx.logger.Debug("indexer document chunked",
			zap.String("path", doc.Path),
			zap.String("label", doc.Label),
			zap.Int("chunks", len(chunks)))
		all = append(all, chunks...)
	}
	for i := range all {
		all[i].ID = i
	}
	return all
}

// Build runs extraction, preprocessing, chunking and embedding over paths and returns the in-memory index.
// label overrides the per-file source label when non-empty.
func (idx *Indexer) Build(ctx context.Context, paths []string, label string) (*index.Index, int, error) {
	files, err := idx.CollectFiles(paths)
	if err != nil {
		return nil, 0, err
	}
	if len(files) == 0 {
		return nil, 0, ErrNoDocuments
	}
	docs := make([]*Document, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		doc, err := idx.LoadDocument(f, label)
		if err != nil {
			return nil, 0, err
		}
		idx.logger.Info("document loaded", zap.String("path", f), zap.Int("bytes", len(doc.Text)))
		docs = append(docs, doc)
	}
	chunks := idx.ChunkDocuments(docs)
	if len(chunks) == 0 {
		return nil, len(docs), fmt.Errorf("%w: documents contain no text", ErrNoDocuments)
	}
	built, err := index.Build(ctx, chunks, idx.embedder, index.BuildOptions{
		IndexType: idx.config.Index.Type,
		ChunkSize: idx.chunker.ChunkSize(),
	})
	if err != nil {
		return nil, len(docs), fmt.Errorf("build index: %w", err)
	}
	return built, len(docs), nil
}

// Run builds an index from paths and persists it as a new generation at the configured location.
func (idx *Indexer) Run(ctx context.Context, paths []string, label string) (*Result, error) {
	built, n, err := idx.Build(ctx, paths, label)
	if err != nil {
		return nil, err
	}
	defer built.Close()

	location := idx.config.Index.Location
	if err := index.Persist(built, location); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	genDir, err := index.CurrentGeneration(location)
	if err != nil {
		return nil, fmt.Errorf("read generation: %w", err)
	}
	gen := filepath.Base(genDir)
	res := &Result{
		Documents:  n,
		Chunks:     built.Len(),
		Generation: gen,
		Location:   location,
		Manifest:   built.Manifest(),
	}
	idx.logger.Info("index persisted",
		zap.String("location", location),
		zap.String("generation", gen),
		zap.Int("documents", res.Documents),
		zap.Int("chunks", res.Chunks))
	return res, nil
}

// Probe loads the persisted index and retrieves the top chunks for question, logging a preview of each.
// It exercises the same load path the query side uses.
func (idx *Indexer) Probe(ctx context.Context, question string) (models.RetrievalResult, error) {
	loaded, err := index.Load(idx.config.Index.Location, idx.embedder.Identity())
	if err != nil {
		return nil, err
	}
	defer loaded.Close()

	results, err := retrieval.New(retrieval.StaticSource{Index: loaded}, idx.embedder).Retrieve(ctx, question, probeTopK)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		idx.logger.Info("probe result",
			zap.Int("rank", i+1),
			zap.Float64("score", r.Score),
			zap.String("source", r.Chunk.SourceLabel),
			zap.String("preview", utils.Preview(r.Chunk.Text, idx.config.Retrieval.PreviewLength)))
	}
	return results, nil
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
