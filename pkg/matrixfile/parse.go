package matrixfile

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/ccollicutt/logmatrix/pkg/matrix"
	"github.com/ccollicutt/logmatrix/pkg/parser"
)

// Parse reads a matrix file back with the same tokenizer the extractors use.
// Blank lines are ignored.
func Parse(r io.Reader) (*matrix.Dense, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows [][]float64
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := parser.SplitRow(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		values, err := parser.ParseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		rows = append(rows, values)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return matrix.FromRows(rows)
}

// ReadFile parses the matrix file at path.
func ReadFile(path string) (*matrix.Dense, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}
