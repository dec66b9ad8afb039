// Package cli renders answers and index status for the command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/rag"
)

// ErrAnswerFailed is returned after an error answer has been written, so callers can exit non-zero.
var ErrAnswerFailed = errors.New("question could not be answered")

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q: use text or json", s)
	}
}

type answerJSON struct {
	Answer  string         `json:"answer"`
	Sources []string       `json:"sources"`
	Outcome models.Outcome `json:"outcome"`
	OK      bool           `json:"ok"`
}

// WriteAnswer writes a blocking answer to w in the given format. It returns ErrAnswerFailed
// once the error answer has been written.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	var err error
	switch format {
	case OutputJSON:
		sources := answer.Sources
		if sources == nil {
			sources = []string{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(answerJSON{Answer: answer.Text, Sources: sources, Outcome: answer.Outcome, OK: answer.OK()})
	default:
		err = writeAnswerText(w, answer.Text, answer.Sources)
	}
	if err != nil {
		return err
	}
	if !answer.OK() {
		return ErrAnswerFailed
	}
	return nil
}

func writeAnswerText(w io.Writer, text string, sources []string) error {
	if _, err := fmt.Fprintln(w, text); err != nil {
		return err
	}
	return writeSources(w, sources)
}

func writeSources(w io.Writer, sources []string) error {
	if len(sources) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nSources:"); err != nil {
		return err
	}
	for i, s := range sources {
		if _, err := fmt.Fprintf(w, "  [%d] %s\n", i+1, s); err != nil {
			return err
		}
	}
	return nil
}

// WriteStream copies fragments to w as they arrive, then lists the sources. The stream is closed.
// It returns ErrAnswerFailed when the answer ended in a failed fragment.
func WriteStream(w io.Writer, answer *rag.StreamingAnswer) error {
	s := answer.Stream
	defer s.Close()
	failed := answer.Err != nil
	for s.Next() {
		f := s.Fragment()
		if f.Failed {
			failed = true
		}
		if _, err := io.WriteString(w, f.Text); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if failed {
		return ErrAnswerFailed
	}
	return writeSources(w, answer.Sources)
}

// WriteStatus writes an index status report.
func WriteStatus(w io.Writer, st index.Status, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "Location:   %s\n", st.Location)
	if st.Error != "" {
		fmt.Fprintf(w, "Status:     unavailable (%s)\n", st.Error)
		return nil
	}
	fmt.Fprintf(w, "Generation: %s\n", st.Generation)
	fmt.Fprintf(w, "Disk usage: %d bytes (generation %d, chunk store %d)\n",
		st.DiskUsageBytes, st.GenerationBytes, st.ChunkStoreBytes)
	if m := st.Manifest; m != nil {
		fmt.Fprintf(w, "Schema:     v%d\n", m.SchemaVersion)
		fmt.Fprintf(w, "Embedder:   %s (%d dims)\n", m.Embedder.Identity, m.Embedder.Dimensions)
		fmt.Fprintf(w, "Type:       %s\n", m.IndexType)
		fmt.Fprintf(w, "Chunks:     %d (max %d words)\n", m.ChunkCount, m.ChunkSize)
		fmt.Fprintf(w, "Sources:    %d\n", len(m.SourceLabels))
		for _, l := range m.SourceLabels {
			fmt.Fprintf(w, "  - %s\n", l)
		}
		fmt.Fprintf(w, "Created:    %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
