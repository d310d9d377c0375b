package util

import (
	"fmt"
	"os"
	"path/filepath"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins a stored filename under root, stripping any path components
// so a crafted filename cannot escape the project data directory.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}
