package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// PrepareOutputDir makes sure dir exists. When clean is set, anything already
// inside it is removed first.
func PrepareOutputDir(dir string, clean bool) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output path %s exists and is not a directory", dir)
	case err == nil && clean:
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read output directory: %w", err)
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("failed to clear output directory: %w", err)
			}
		}
		slog.Info("Output directory cleared", "dir", dir, "removed", len(entries))
		return nil
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("cannot access output directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	slog.Info("Output directory created", "dir", dir)
	return nil
}
