package matrixfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrWriteFailed marks any failure to persist an output file.
var ErrWriteFailed = errors.New("unable to write output file")

// WriteError reports the file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is matches ErrWriteFailed.
func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }

// Sink persists named matrix files. Extraction never touches the file
// system directly; it writes through a Sink.
type Sink interface {
	// WriteFile stores data under name, replacing any previous content.
	WriteFile(ctx context.Context, name string, data []byte) error

	// Location returns the full path (or identifier) name is stored under.
	Location(name string) string
}

// DirSink writes files into a directory, creating it on first use.
type DirSink struct {
	Dir string
}

// NewDirSink returns a sink rooted at dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Location returns the path name is written to.
func (s *DirSink) Location(name string) string {
	return filepath.Join(s.Dir, name)
}

// WriteFile writes data to a temporary file and renames it into place, so
// readers never see a partially written matrix.
func (s *DirSink) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Location(name)

	if err := os.MkdirAll(s.Dir, 0755); err != nil { // #nosec G301 -- output is meant to be shared with renderers
		return &WriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil { // #nosec G302 -- matrix files are not sensitive
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// MemorySink keeps files in memory. Used for dry runs and tests.
type MemorySink struct {
	Prefix string

	mu    sync.Mutex
	files map[string][]byte
}

// NewMemorySink returns an empty in-memory sink. Prefix only affects Location.
func NewMemorySink(prefix string) *MemorySink {
	return &MemorySink{Prefix: prefix, files: make(map[string][]byte)}
}

// Location returns prefix/name.
func (s *MemorySink) Location(name string) string {
	if s.Prefix == "" {
		return name
	}
	return filepath.Join(s.Prefix, name)
}

// WriteFile stores a copy of data.
func (s *MemorySink) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	return nil
}

// File returns the content stored under name.
func (s *MemorySink) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// Names returns the stored file names, sorted.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
