package parser

import (
	"fmt"
	"regexp"
)

// PatternExtractor pulls a fixed number of capture groups out of log lines.
type PatternExtractor struct {
	pattern *regexp.Regexp
}

// NewPatternExtractor creates an extractor that requires pattern to have
// exactly groups capture groups.
func NewPatternExtractor(pattern *regexp.Regexp, groups int) (*PatternExtractor, error) {
	if pattern.NumSubexp() != groups {
		return nil, fmt.Errorf("pattern %q has %d capture groups, want %d",
			pattern.String(), pattern.NumSubexp(), groups)
	}
	return &PatternExtractor{pattern: pattern}, nil
}

// ExtractAll returns the captured groups of every non-overlapping match in line.
func (e *PatternExtractor) ExtractAll(line string) [][]string {
	all := e.pattern.FindAllStringSubmatch(line, -1)
	out := make([][]string, 0, len(all))
	for _, m := range all {
		out = append(out, m[1:])
	}
	return out
}
