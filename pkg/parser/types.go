// Package parser provides log file reading and the line-level tokenizer
// shared by the matrix extractors.
package parser

// LogLine is a single raw line of a log file.
type LogLine struct {
	// Content is the raw line text without the trailing newline.
	Content string

	// Source is the file path this line came from.
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int
}

// Document is the immutable content of one log file, read once and scanned
// by each extractor independently.
type Document struct {
	// Path is the file the document was read from (empty for in-memory documents).
	Path string

	lines []LogLine
}

// NewDocument builds a Document from already-split lines.
func NewDocument(path string, lines []string) *Document {
	doc := &Document{Path: path, lines: make([]LogLine, len(lines))}
	for i, l := range lines {
		doc.lines[i] = LogLine{Content: l, Source: path, LineNum: i + 1}
	}
	return doc
}

// Len returns the number of lines.
func (d *Document) Len() int { return len(d.lines) }

// Line returns the line at 0-based index i.
func (d *Document) Line(i int) LogLine { return d.lines[i] }

// Source returns a fresh forward iterator over the document lines.
func (d *Document) Source() *DocumentSource {
	return &DocumentSource{doc: d}
}
