package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/config"
	"github.com/hyperjump/lexrag/internal/embedding"
	"github.com/hyperjump/lexrag/internal/extract"
	"github.com/hyperjump/lexrag/internal/index"
)

const (
	terminationText = `1. Termination
Either party may terminate this contract with 30 days written notice. A user who wants to terminate the contract must send the notice to support.
Termination does not affect fees already paid.`
	paymentText = `2. Payment
Fees are invoiced monthly. Late payment incurs interest at the statutory rate.
Invoices are payable within fourteen days.`
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{".txt", ".md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
		{".pdf", []string{"pdf"}, true},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func testIndexer(t *testing.T, opts ...IndexerOption) (*Indexer, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Location = filepath.Join(t.TempDir(), "index")
	cfg.Index.ChunkSize = 40
	emb, err := embedding.NewHashingEmbedder(256)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]IndexerOption{WithLogger(zap.NewNop())}, opts...)
	return NewIndexer(cfg, emb, extract.NewExtractor(), opts...), cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectFiles(t *testing.T) {
	ix, _ := testIndexer(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "b")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "sheet.xlsx"), "x")
	writeFile(t, filepath.Join(dir, ".git", "HEAD.txt"), "ref")
	writeFile(t, filepath.Join(dir, "sub", "c.docx"), "c")
	outside := filepath.Join(t.TempDir(), "notes.log")
	writeFile(t, outside, "explicit")

	got, err := ix.CollectFiles([]string{dir, outside, filepath.Join(dir, "a.txt")})
	if err != nil {
		t.Fatalf("CollectFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
		filepath.Join(dir, "sub", "c.docx"),
		outside,
	}
	// sorted order depends on the temp dir names; compare as sets of equal size
	if len(got) != len(want) {
		t.Fatalf("CollectFiles = %v, want %v", got, want)
	}
	seen := make(map[string]bool)
	for _, p := range got {
		seen[p] = true
	}
	for _, p := range want {
		if !seen[p] {
			t.Errorf("missing %s in %v", p, got)
		}
	}
}

func TestCollectFiles_missingPath(t *testing.T) {
	ix, _ := testIndexer(t)
	if _, err := ix.CollectFiles([]string{"/nonexistent/contract.txt"}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestDefaultLabel(t *testing.T) {
	tests := map[string]string{
		"/docs/AI Training Document.pdf": "AI Training Document",
		"terms.v2.txt":                   "terms.v2",
		"README":                         "README",
	}
	for path, want := range tests {
		if got := DefaultLabel(path); got != want {
			t.Errorf("DefaultLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLoadDocument(t *testing.T) {
	ix, _ := testIndexer(t)
	path := filepath.Join(t.TempDir(), "Terms.txt")
	writeFile(t, path, "The user\nagrees   to the terms.")

	doc, err := ix.LoadDocument(path, "")
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if doc.Label != "Terms" {
		t.Errorf("Label = %q", doc.Label)
	}
	if doc.Text != "The user agrees to the terms." {
		t.Errorf("Text = %q", doc.Text)
	}

	doc, err = ix.LoadDocument(path, "Service Agreement")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Label != "Service Agreement" {
		t.Errorf("override Label = %q", doc.Label)
	}
}

func TestChunkDocuments_globalIDs(t *testing.T) {
	ix, _ := testIndexer(t, WithSplitter(periodSplitter))
	docs := []*Document{
		{Path: "a", Label: "a", Text: strings.Repeat("word ", 60) + "end."},
		{Path: "b", Label: "b", Text: "Short text."},
	}
	chunks := ix.ChunkDocuments(docs)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ID != i {
			t.Errorf("chunk %d has ID %d", i, c.ID)
		}
	}
	if last := chunks[len(chunks)-1]; last.SourceLabel != "b" || last.Text != "Short text." {
		t.Errorf("last chunk = %+v", last)
	}
}

func TestBuild_noDocuments(t *testing.T) {
	ix, _ := testIndexer(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sheet.xlsx"), "x")
	if _, _, err := ix.Build(context.Background(), []string{dir}, ""); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}

	blank := filepath.Join(dir, "blank.txt")
	writeFile(t, blank, " \n\n ")
	if _, _, err := ix.Build(context.Background(), []string{blank}, ""); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("blank document err = %v, want ErrNoDocuments", err)
	}
}

func TestRun_persistsAndProbes(t *testing.T) {
	ix, cfg := testIndexer(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "termination.txt"), terminationText)
	writeFile(t, filepath.Join(dir, "payment.md"), paymentText)

	ctx := context.Background()
	res, err := ix.Run(ctx, []string{dir}, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Documents != 2 || res.Chunks < 2 {
		t.Errorf("Result = %+v", res)
	}
	if !strings.HasPrefix(res.Generation, "gen-") {
		t.Errorf("Generation = %q", res.Generation)
	}
	if want := []string{"payment", "termination"}; !reflect.DeepEqual(res.Manifest.SourceLabels, want) {
		t.Errorf("SourceLabels = %v, want %v", res.Manifest.SourceLabels, want)
	}
	if res.Manifest.ChunkSize != cfg.Index.ChunkSize {
		t.Errorf("ChunkSize = %d", res.Manifest.ChunkSize)
	}

	results, err := ix.Probe(ctx, "How can a user terminate their contract?")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(results) == 0 || len(results) > probeTopK {
		t.Fatalf("Probe returned %d results", len(results))
	}
	if results[0].Chunk.SourceLabel != "termination" {
		t.Errorf("top result from %q, want termination", results[0].Chunk.SourceLabel)
	}
}

func TestRun_labelOverrideAndRebuild(t *testing.T) {
	ix, cfg := testIndexer(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "termination.txt"), terminationText)

	first, err := ix.Run(context.Background(), []string{dir}, "AI Training Document")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"AI Training Document"}; !reflect.DeepEqual(first.Manifest.SourceLabels, want) {
		t.Errorf("SourceLabels = %v", first.Manifest.SourceLabels)
	}

	writeFile(t, filepath.Join(dir, "payment.txt"), paymentText)
	second, err := ix.Run(context.Background(), []string{dir}, "")
	if err != nil {
		t.Fatal(err)
	}
	if second.Generation == first.Generation {
		t.Error("rebuild should publish a new generation")
	}
	loaded, err := index.Load(cfg.Index.Location, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer loaded.Close()
	if loaded.Len() != second.Chunks {
		t.Errorf("loaded %d chunks, want %d", loaded.Len(), second.Chunks)
	}
}

func TestProbe_withoutIndex(t *testing.T) {
	ix, _ := testIndexer(t)
	if _, err := ix.Probe(context.Background(), "anything"); !errors.Is(err, index.ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
}
