package util

import "path/filepath"

// AbsPath returns the absolute form of path, or path itself when it cannot
// be resolved.
func AbsPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
