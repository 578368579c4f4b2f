package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// ErrMissingInput is returned when the log file to extract from does not exist.
var ErrMissingInput = errors.New("input log file does not exist")

// ReadDocument reads the whole log file at path into a Document.
func ReadDocument(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	if err != nil {
		return nil, fmt.Errorf("checking log file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMissingInput, path)
	}

	src := NewFileSource([]string{path})
	defer src.Close()

	doc := &Document{Path: path}
	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		doc.lines = append(doc.lines, *line)
	}
	return doc, nil
}

// ParseDocument splits text into a Document. Both "\n" and "\r\n" line
// endings are accepted.
func ParseDocument(path, text string) *Document {
	if text == "" {
		return NewDocument(path, nil)
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return NewDocument(path, lines)
}
