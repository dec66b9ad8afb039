package index

import (
	"path/filepath"

	"github.com/hyperjump/lexrag/internal/storage"
)

// Status summarizes the index at a location.
type Status struct {
	Location       string    `json:"location"`
	Loaded         bool      `json:"loaded"`
	Generation     string    `json:"generation,omitempty"`
	Manifest       *Manifest `json:"manifest,omitempty"`
	DiskUsageBytes int64     `json:"disk_usage_bytes"`
	// GenerationBytes covers only the current generation; DiskUsageBytes also counts
	// generations not yet cleaned up.
	GenerationBytes int64  `json:"generation_bytes"`
	ChunkStoreBytes int64  `json:"chunk_store_bytes"`
	Error           string `json:"error,omitempty"`
}

// StatusOf describes location. When loaded is nil the manifest is read from disk
// without loading vectors or chunks.
func StatusOf(location string, loaded *Index) Status {
	st := Status{Location: location, Loaded: loaded != nil}
	if n, err := storage.DiskUsageBytes(location); err == nil {
		st.DiskUsageBytes = n
	}
	dir, err := CurrentGeneration(location)
	if err == nil {
		st.Generation = filepath.Base(dir)
		if n, err := storage.DiskUsageBytes(dir); err == nil {
			st.GenerationBytes = n
		}
		if n, err := storage.ChunkStoreBytes(filepath.Join(dir, ChunksFile)); err == nil {
			st.ChunkStoreBytes = n
		}
	}
	if loaded != nil {
		m := loaded.Manifest()
		st.Manifest = &m
		return st
	}
	if err != nil {
		st.Error = err.Error()
		return st
	}
	m, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		st.Error = unavailable("read manifest", err).Error()
		return st
	}
	st.Manifest = &m
	return st
}
