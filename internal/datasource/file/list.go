// Package file contains helpers for resolving local input paths into the
// record files a run will read.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"laspipe/internal/config"
)

// Expand resolves path into a list of record files.
//
//   - A regular file is returned as-is (its extension must be accepted).
//   - A directory yields the accepted-extension files directly inside it,
//     sorted by name. Subdirectories are not descended into.
//
// A path that is neither, or a directory containing no record files, is an
// error.
func Expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}

	if !info.IsDir() {
		if !config.AcceptedExtension(path) {
			return nil, fmt.Errorf("input %s: not an accepted record file", path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !config.AcceptedExtension(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("input %s: no record files found", path)
	}
	sort.Strings(out)
	return out, nil
}
