package utils

import (
	"path/filepath"
)

// AbsPath returns the absolute form of path, or path itself when it cannot
// be resolved.
func AbsPath(path string) string {
	if !filepath.IsAbs(path) {
		b, err := filepath.Abs(path)
		if err == nil {
			path = b
		}
	}
	return path
}
