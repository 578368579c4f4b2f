package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ExpandResultDirs expands a list of results directories and glob patterns
// into a deduplicated, sorted list of directories. Glob matches that are not
// directories are dropped. Patterns that match nothing are returned as-is so
// the caller reports a missing input for them.
func ExpandResultDirs(patterns []string) ([]string, error) {
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
			add(filepath.Clean(pattern))
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				continue
			}
			add(filepath.Clean(match))
		}
	}

	sort.Strings(result)
	return result, nil
}
