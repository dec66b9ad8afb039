package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the persisted layout version written to and required from manifest.yaml.
const SchemaVersion = 1

// Manifest describes one persisted index generation.
type Manifest struct {
	SchemaVersion int          `yaml:"schema_version" json:"schema_version"`
	Embedder      EmbedderInfo `yaml:"embedder" json:"embedder"`
	IndexType     string       `yaml:"index_type" json:"index_type"`
	ChunkCount    int          `yaml:"chunk_count" json:"chunk_count"`
	ChunkSize     int          `yaml:"chunk_size" json:"chunk_size"`
	SourceLabels  []string     `yaml:"source_labels" json:"source_labels"`
	VectorsSHA256 string       `yaml:"vectors_sha256" json:"vectors_sha256"`
	CreatedAt     time.Time    `yaml:"created_at" json:"created_at"`
}

// EmbedderInfo pins the embedding function an index was built with.
type EmbedderInfo struct {
	Identity   string `yaml:"identity" json:"identity"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
}

func writeManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFileSync(path, data)
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: parse manifest: %v", ErrSchemaMismatch, err)
	}
	return m, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeFileSync writes data to path and fsyncs it before returning.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
