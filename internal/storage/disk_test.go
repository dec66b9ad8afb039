package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/lexrag/internal/models"
)

// writeGeneration lays out a generation directory with a populated chunk store and
// a vectors file of known size.
func writeGeneration(t *testing.T, dir string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "chunks.db")
	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	chunks := []models.Chunk{
		{ID: 0, Text: "Either party may terminate this agreement with 30 days notice.", WordCount: 11, SourceLabel: "terms"},
		{ID: 1, Text: "Personal data is retained for twelve months.", WordCount: 7, SourceLabel: "privacy"},
	}
	if err := store.BatchCreateChunks(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "vectors.bin"), make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	return dbPath
}

func TestDiskUsageBytes_generation(t *testing.T) {
	location := t.TempDir()
	gen := filepath.Join(location, "gen-a")
	if err := os.Mkdir(gen, 0o755); err != nil {
		t.Fatal(err)
	}
	dbPath := writeGeneration(t, gen)
	if err := os.WriteFile(filepath.Join(location, "CURRENT"), []byte("gen-a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	storeBytes, err := ChunkStoreBytes(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if storeBytes == 0 {
		t.Fatal("chunk store should not be empty")
	}

	genBytes, err := DiskUsageBytes(gen)
	if err != nil {
		t.Fatal(err)
	}
	if genBytes != storeBytes+64 {
		t.Errorf("generation = %d bytes, want store %d + vectors 64", genBytes, storeBytes)
	}

	total, err := DiskUsageBytes(location)
	if err != nil {
		t.Fatal(err)
	}
	if total != genBytes+int64(len("gen-a\n")) {
		t.Errorf("location = %d bytes, want generation %d + pointer file", total, genBytes)
	}
}

func TestDiskUsageBytes_missingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "vectors.bin")
	if err := os.WriteFile(f, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes("", f, filepath.Join(dir, "gen-gone"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("got %d bytes, want 5", got)
	}
}

func TestChunkStoreBytes_missing(t *testing.T) {
	_, err := ChunkStoreBytes(filepath.Join(t.TempDir(), "chunks.db"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
