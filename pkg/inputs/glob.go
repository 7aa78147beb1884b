// Package inputs resolves the capture paths given to decode commands.
package inputs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ExpandGlobs expands a list of file paths and glob patterns into a
// deduplicated, sorted list of capture files. Patterns that match nothing
// are returned as-is so the decoder reports the missing file.
//
// Glob matches that are directories, or whose extension is one of skipExts
// (compared case-insensitively), are dropped; an explicit path is never
// dropped.
func ExpandGlobs(patterns []string, skipExts ...string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}

		literal := len(matches) == 1 && matches[0] == pattern
		for _, match := range matches {
			if !literal && skipMatch(match, skipExts) {
				continue
			}
			add(match)
		}
	}

	slices.Sort(result)

	return result, nil
}

func skipMatch(path string, skipExts []string) bool {
	ext := filepath.Ext(path)
	for _, s := range skipExts {
		if strings.EqualFold(ext, s) {
			return true
		}
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
