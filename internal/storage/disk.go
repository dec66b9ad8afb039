package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// walSuffixes are the sidecar files SQLite keeps next to a database in WAL mode.
var walSuffixes = []string{"-wal", "-shm"}

// DiskUsageBytes sums the sizes of regular files under paths. A path may be a file or
// a directory. Missing paths count as zero, so a location that is mid-swap can still
// be measured.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
	}
	return total, nil
}

// ChunkStoreBytes returns the on-disk size of the chunk database at dbPath, WAL
// sidecars included. A checkpointed store has no sidecars.
func ChunkStoreBytes(dbPath string) (int64, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return 0, err
	}
	paths := []string{dbPath}
	for _, suffix := range walSuffixes {
		paths = append(paths, dbPath+suffix)
	}
	return DiskUsageBytes(paths...)
}
