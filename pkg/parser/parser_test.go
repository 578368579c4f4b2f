package parser

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func drain(t *testing.T, src LineSource) []*LogLine {
	t.Helper()
	ctx := context.Background()
	var lines []*LogLine
	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestFileSource_Next(t *testing.T) {
	dir := t.TempDir()
	logFile := writeLog(t, dir, "rank_0.log", "Epoch 1/2, Step 1/10\nTraffic Matrix (MB):\n0.00\t1.50\t\n")

	source := NewFileSource([]string{logFile})
	defer source.Close()

	lines := drain(t, source)
	if len(lines) != 3 {
		t.Fatalf("Got %d lines, want 3", len(lines))
	}
	if lines[0].LineNum != 1 {
		t.Errorf("LineNum = %d, want 1", lines[0].LineNum)
	}
	if lines[0].Source != logFile {
		t.Errorf("Source = %q, want %q", lines[0].Source, logFile)
	}
	if lines[2].Content != "0.00\t1.50\t" {
		t.Errorf("Content = %q, want %q", lines[2].Content, "0.00\t1.50\t")
	}
}

func TestFileSource_MultipleFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeLog(t, dir, "a.log", "one\ntwo\n")
	b := writeLog(t, dir, "b.log", "three\n")

	source := NewFileSource([]string{a, b})
	defer source.Close()

	lines := drain(t, source)
	if len(lines) != 3 {
		t.Fatalf("Got %d lines, want 3", len(lines))
	}
	if lines[2].Source != b || lines[2].LineNum != 1 {
		t.Errorf("third line = %s:%d, want %s:1", lines[2].Source, lines[2].LineNum, b)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	source := NewFileSource([]string{"/nonexistent/rank_0.log"})
	defer source.Close()

	_, err := source.Next(context.Background())
	if err == nil || err == io.EOF {
		t.Errorf("Next() error = %v, want open error", err)
	}
}

func TestFileSource_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	logFile := writeLog(t, dir, "rank_0.log", "line\n")

	source := NewFileSource([]string{logFile})
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestFileSource_CRLF(t *testing.T) {
	dir := t.TempDir()
	logFile := writeLog(t, dir, "rank_0.log", "1.0 2.0\r\n3.0 4.0\r\n")

	source := NewFileSource([]string{logFile})
	defer source.Close()

	lines := drain(t, source)
	if len(lines) != 2 || lines[0].Content != "1.0 2.0" {
		t.Errorf("lines = %+v, want CR stripped", lines)
	}
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	logFile := writeLog(t, dir, "rank_0.log", "a\nb\n\nc")

	doc, err := ReadDocument(context.Background(), logFile)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if doc.Len() != 4 {
		t.Errorf("Len() = %d, want 4", doc.Len())
	}
	if doc.Line(3).Content != "c" || doc.Line(3).LineNum != 4 {
		t.Errorf("Line(3) = %+v", doc.Line(3))
	}
	if doc.Path != logFile {
		t.Errorf("Path = %q, want %q", doc.Path, logFile)
	}
}

func TestReadDocument_Missing(t *testing.T) {
	_, err := ReadDocument(context.Background(), filepath.Join(t.TempDir(), "rank_0.log"))
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("ReadDocument() error = %v, want ErrMissingInput", err)
	}
}

func TestReadDocument_Directory(t *testing.T) {
	_, err := ReadDocument(context.Background(), t.TempDir())
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("ReadDocument() error = %v, want ErrMissingInput", err)
	}
}

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank line kept", "a\n\nb", []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ParseDocument("mem", tt.text)
			if doc.Len() != len(tt.want) {
				t.Fatalf("Len() = %d, want %d", doc.Len(), len(tt.want))
			}
			for i, w := range tt.want {
				if got := doc.Line(i).Content; got != w {
					t.Errorf("Line(%d) = %q, want %q", i, got, w)
				}
			}
		})
	}
}

func TestDocumentSource_IndependentScans(t *testing.T) {
	doc := ParseDocument("mem", "x\ny\n")

	first := drain(t, doc.Source())
	second := drain(t, doc.Source())
	if len(first) != 2 || len(second) != 2 {
		t.Errorf("scans returned %d and %d lines, want 2 and 2", len(first), len(second))
	}
}

func TestDocumentSource_Peek(t *testing.T) {
	src := ParseDocument("mem", "x\ny").Source()

	line, ok := src.Peek()
	if !ok || line.Content != "x" {
		t.Fatalf("Peek() = %v, %v", line, ok)
	}
	next, err := src.Next(context.Background())
	if err != nil || next.Content != "x" {
		t.Fatalf("Next() = %v, %v", next, err)
	}
	_, _ = src.Next(context.Background())
	if _, ok := src.Peek(); ok {
		t.Error("Peek() at end should report false")
	}
}
