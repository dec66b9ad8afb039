package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/lexrag/internal/generation"
	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/rag"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	answer := &models.Answer{
		Text:    "Either party may terminate with 30 days notice.",
		Sources: []string{"Either party may terminate..."},
		Outcome: models.OutcomeAnswered,
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answer, OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded answerJSON
	if err := json.NewDecoder(strings.NewReader(buf.String())).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Answer != answer.Text || !decoded.OK || decoded.Outcome != models.OutcomeAnswered {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Sources) != 1 {
		t.Errorf("sources = %v", decoded.Sources)
	}
}

func TestWriteAnswer_JSONFailureHasEmptySources(t *testing.T) {
	answer := &models.Answer{
		Text:    generation.ErrorPrefix + "boom",
		Outcome: models.OutcomeGenerationFailed,
	}
	var buf bytes.Buffer
	err := WriteAnswer(&buf, answer, OutputJSON)
	if !errors.Is(err, ErrAnswerFailed) {
		t.Fatalf("err = %v, want ErrAnswerFailed", err)
	}
	if !strings.Contains(buf.String(), `"sources": []`) {
		t.Errorf("expected empty sources array, got %s", buf.String())
	}
}

func TestWriteAnswer_text(t *testing.T) {
	answer := &models.Answer{
		Text:    "The user must give notice.",
		Sources: []string{"first...", "second..."},
		Outcome: models.OutcomeAnswered,
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answer, OutputText); err != nil {
		t.Fatal(err)
	}
	want := "The user must give notice.\n\nSources:\n  [1] first...\n  [2] second...\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteAnswer_unknownFormatTreatedAsText(t *testing.T) {
	answer := &models.Answer{Text: "plain", Outcome: models.OutcomeAnswered}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answer, OutputFormat("xml")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "plain\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteStream(t *testing.T) {
	sa := &rag.StreamingAnswer{
		Stream:  generation.StaticStream("Thirty ", "days ", "notice."),
		Sources: []string{"Either party..."},
	}
	var buf bytes.Buffer
	if err := WriteStream(&buf, sa); err != nil {
		t.Fatal(err)
	}
	want := "Thirty days notice.\n\nSources:\n  [1] Either party...\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteStream_failedFragment(t *testing.T) {
	sa := &rag.StreamingAnswer{
		Stream:  generation.FailedStream(errors.New("Error processing query: index not loaded")),
		Sources: []string{},
		Err:     errors.New("index not loaded"),
	}
	var buf bytes.Buffer
	if err := WriteStream(&buf, sa); !errors.Is(err, ErrAnswerFailed) {
		t.Fatalf("err = %v, want ErrAnswerFailed", err)
	}
	if buf.String() != "Error processing query: index not loaded\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := index.Status{
		Location:        "/var/lexrag/index",
		Generation:      "gen-1",
		DiskUsageBytes:  2048,
		GenerationBytes: 1024,
		ChunkStoreBytes: 512,
		Manifest: &index.Manifest{
			SchemaVersion: index.SchemaVersion,
			Embedder:      index.EmbedderInfo{Identity: "hashing-en/1024", Dimensions: 1024},
			IndexType:     "memory",
			ChunkCount:    12,
			ChunkSize:     300,
			SourceLabels:  []string{"AI Training Document"},
			CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"gen-1", "hashing-en/1024 (1024 dims)", "Chunks:     12 (max 300 words)", "  - AI Training Document", "2048 bytes (generation 1024, chunk store 512)"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, st, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded index.Status
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Manifest == nil || decoded.Manifest.ChunkCount != 12 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteStatus_unavailable(t *testing.T) {
	st := index.Status{Location: "/missing", Error: "index unavailable"}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "unavailable (index unavailable)") {
		t.Errorf("got %q", buf.String())
	}
}
