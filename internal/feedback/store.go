package feedback

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists feedback as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file and its parent directory are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (fs *FileStore) Path() string { return fs.path }

// Writable reports whether Save can plausibly succeed: the path must not be a
// directory and an existing parent must be a directory. It does not create
// anything.
func (fs *FileStore) Writable() error {
	if fi, err := os.Stat(fs.path); err == nil && fi.IsDir() {
		return fmt.Errorf("feedback: %s is a directory", fs.path)
	}
	fi, err := os.Stat(filepath.Dir(fs.path))
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("feedback: stat dir: %w", err)
	case !fi.IsDir():
		return fmt.Errorf("feedback: %s is not a directory", filepath.Dir(fs.path))
	}
	return nil
}

// Save appends a feedback record to the file.
func (fs *FileStore) Save(fb Feedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("feedback: create dir: %w", err)
		}
	}

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}

// List returns every stored record in write order. A missing file yields an
// empty list. Lines that fail to parse are skipped and reported together in
// the returned error alongside the records that did parse.
func (fs *FileStore) List() ([]Feedback, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	var (
		out  []Feedback
		errs []error
		line int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var fb Feedback
		if err := json.Unmarshal(sc.Bytes(), &fb); err != nil {
			errs = append(errs, fmt.Errorf("feedback: line %d: %w", line, err))
			continue
		}
		out = append(out, fb)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("feedback: read: %w", err))
	}
	return out, errors.Join(errs...)
}
