package phys

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveImage writes the whole of r to path atomically via temp file + rename.
// The result can be reopened with MapImage at the same base.
func (r *RAM) SaveImage(path string) error {
	if r.data == nil {
		return ErrClosed
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".efimem-ram-*")
	if err != nil {
		return fmt.Errorf("phys: create temp image: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(r.data); err != nil {
		return fmt.Errorf("phys: write temp image: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("phys: sync temp image: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("phys: close temp image: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("phys: rename image: %w", err)
	}
	return nil
}
