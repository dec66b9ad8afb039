// Package extract turns source documents into plain text for ingestion.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions no adapter handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

type extractFunc func(content []byte) (string, error)

// Extractor extracts plain text from document files.
type Extractor struct {
	formats map[string]extractFunc
}

// NewExtractor returns an Extractor for plain text, Markdown, PDF and DOCX.
func NewExtractor() *Extractor {
	return &Extractor{formats: map[string]extractFunc{
		".txt":  extractPlain,
		".md":   extractPlain,
		".rst":  extractPlain,
		"":      extractPlain,
		".pdf":  extractPDF,
		".docx": extractDOCX,
	}}
}

// SupportedExtensions returns the extensions (with leading dot) this extractor accepts, sorted.
func (e *Extractor) SupportedExtensions() []string {
	exts := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether the extension of path has an adapter.
func (e *Extractor) Supports(path string) bool {
	_, ok := e.formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on ext, which includes the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := e.formats[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return fn(content)
}
