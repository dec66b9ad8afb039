package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/storage"
	"github.com/hyperjump/lexrag/internal/vector"
)

// Layout of a persisted index location.
const (
	CurrentFile      = "CURRENT"
	currentTmpFile   = "CURRENT.tmp"
	generationPrefix = "gen-"

	ManifestFile = "manifest.yaml"
	ChunksFile   = "chunks.db"
	VectorsFile  = "vectors.bin"
	FAISSFile    = "vectors.faiss"
)

// Persist writes idx as a new generation under location and atomically points CURRENT
// at it. Readers of location see either the previous generation or the new one.
// Older generations are removed afterwards on a best-effort basis.
func Persist(idx *Index, location string) error {
	if err := os.MkdirAll(location, 0755); err != nil {
		return fmt.Errorf("create index location: %w", err)
	}
	gen := generationPrefix + uuid.NewString()
	dir := filepath.Join(location, gen)
	if err := os.Mkdir(dir, 0755); err != nil {
		return fmt.Errorf("create generation directory: %w", err)
	}
	if err := writeGeneration(idx, dir); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}

	tmp := filepath.Join(location, currentTmpFile)
	if err := writeFileSync(tmp, []byte(gen+"\n")); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("write %s: %w", currentTmpFile, err)
	}
	if err := os.Rename(tmp, filepath.Join(location, CurrentFile)); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("swap %s: %w", CurrentFile, err)
	}
	syncDir(location)

	removeStaleGenerations(location, gen)
	return nil
}

func writeGeneration(idx *Index, dir string) error {
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, ChunksFile))
	if err != nil {
		return fmt.Errorf("create chunk store: %w", err)
	}
	if err := storeChunks(store, idx.chunks); err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close chunk store: %w", err)
	}

	vectorsPath := filepath.Join(dir, VectorsFile)
	if err := idx.vectors.Save(vectorsPath); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	if idx.search != idx.vectors {
		if err := idx.search.Save(filepath.Join(dir, FAISSFile)); err != nil {
			return fmt.Errorf("save %s index: %w", idx.search.Type(), err)
		}
	}
	sum, err := fileSHA256(vectorsPath)
	if err != nil {
		return fmt.Errorf("checksum vectors: %w", err)
	}
	idx.manifest.VectorsSHA256 = sum
	return writeManifest(filepath.Join(dir, ManifestFile), idx.manifest)
}

func storeChunks(store storage.ChunkStore, chunks []models.Chunk) error {
	ctx := context.Background()
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	n, err := store.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if n != int64(len(chunks)) {
		return fmt.Errorf("chunk store has %d rows, wrote %d", n, len(chunks))
	}
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func removeStaleGenerations(location, keep string) {
	entries, err := os.ReadDir(location)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), generationPrefix) && e.Name() != keep {
			_ = os.RemoveAll(filepath.Join(location, e.Name()))
		}
	}
}

// CurrentGeneration returns the directory CURRENT points at.
func CurrentGeneration(location string) (string, error) {
	if _, err := os.Stat(location); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, location, err)
	}
	data, err := os.ReadFile(filepath.Join(location, CurrentFile))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIndexUnavailable, CurrentFile, err)
	}
	gen := strings.TrimSpace(string(data))
	if !strings.HasPrefix(gen, generationPrefix) || strings.ContainsAny(gen, `/\`) {
		return "", fmt.Errorf("%w: invalid generation name %q", ErrSchemaMismatch, gen)
	}
	return filepath.Join(location, gen), nil
}

// Load opens the current generation at location. expectIdentity, when non-empty, must equal
// the identity of the embedder the index was built with.
func Load(location, expectIdentity string) (*Index, error) {
	dir, err := CurrentGeneration(location)
	if err != nil {
		return nil, err
	}

	manifest, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, unavailable("read manifest", err)
	}
	if manifest.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: schema_version %d, expected %d", ErrSchemaMismatch, manifest.SchemaVersion, SchemaVersion)
	}
	if expectIdentity != "" && manifest.Embedder.Identity != expectIdentity {
		return nil, fmt.Errorf("%w: index built with %q, query embedder is %q",
			ErrEmbedderMismatch, manifest.Embedder.Identity, expectIdentity)
	}
	if manifest.Embedder.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %d", ErrSchemaMismatch, manifest.Embedder.Dimensions)
	}

	vectorsPath := filepath.Join(dir, VectorsFile)
	sum, err := fileSHA256(vectorsPath)
	if err != nil {
		return nil, unavailable("checksum vectors", err)
	}
	if sum != manifest.VectorsSHA256 {
		return nil, fmt.Errorf("%w: %s checksum mismatch", ErrSchemaMismatch, VectorsFile)
	}
	raw, err := vector.NewMemoryIndex(manifest.Embedder.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := raw.Load(vectorsPath); err != nil {
		return nil, unavailable("load vectors", err)
	}

	chunks, err := loadChunks(filepath.Join(dir, ChunksFile), manifest.ChunkCount)
	if err != nil {
		return nil, err
	}
	if len(chunks) != raw.Size() || len(chunks) != manifest.ChunkCount {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors, manifest says %d",
			ErrSchemaMismatch, len(chunks), raw.Size(), manifest.ChunkCount)
	}
	for i, ch := range chunks {
		if ch.ID != i {
			return nil, fmt.Errorf("%w: chunk at position %d has id %d", ErrSchemaMismatch, i, ch.ID)
		}
	}

	idx := &Index{manifest: manifest, chunks: chunks, vectors: raw, search: raw}
	switch vector.IndexType(manifest.IndexType) {
	case vector.IndexTypeMemory:
	case vector.IndexTypeFAISS:
		vi, err := vector.NewVectorIndex(manifest.IndexType, manifest.Embedder.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		if err := vi.Load(filepath.Join(dir, FAISSFile)); err != nil {
			_ = vi.Close()
			return nil, unavailable("load faiss index", err)
		}
		if vi.Size() != len(chunks) {
			_ = vi.Close()
			return nil, fmt.Errorf("%w: faiss index has %d vectors, expected %d", ErrSchemaMismatch, vi.Size(), len(chunks))
		}
		idx.search = vi
	default:
		return nil, fmt.Errorf("%w: unknown index type %q", ErrSchemaMismatch, manifest.IndexType)
	}
	return idx, nil
}

func loadChunks(path string, want int) ([]models.Chunk, error) {
	store, err := storage.OpenSQLiteStorage(path)
	if err != nil {
		return nil, unavailable("open chunk store", err)
	}
	defer store.Close()
	ctx := context.Background()
	n, err := store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count chunks: %v", ErrSchemaMismatch, err)
	}
	if n != int64(want) {
		return nil, fmt.Errorf("%w: chunk store has %d rows, manifest says %d", ErrSchemaMismatch, n, want)
	}
	chunks, err := store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %v", ErrSchemaMismatch, err)
	}
	return chunks, nil
}

// unavailable classifies a load error. Missing files mean the index is unavailable,
// anything else means the files do not have the expected shape.
func unavailable(op string, err error) error {
	if errors.Is(err, ErrIndexUnavailable) {
		return err
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, op, err)
}
