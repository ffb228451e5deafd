package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
)

// TempFile is a scoped temporary file. Release removes it exactly once; later
// calls return the first result.
type TempFile struct {
	path     string
	once     sync.Once
	released atomic.Bool
	err      error
}

// NewTempFile writes data to a new file in dir (os.TempDir when empty) whose
// name ends in "."+ext.
func NewTempFile(dir, ext string, data []byte) (*TempFile, error) {
	f, err := os.CreateTemp(dir, "stemsplit-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return &TempFile{path: path}, nil
}

// ReserveTempFile returns a handle to a fresh, empty path for a tool to write.
func ReserveTempFile(dir, ext string) (*TempFile, error) {
	t, err := NewTempFile(dir, ext, nil)
	if err != nil {
		return nil, err
	}
	// ffmpeg refuses to overwrite without -y; remove so the path is free
	os.Remove(t.path)
	return t, nil
}

func (t *TempFile) Path() string {
	return t.path
}

// Valid reports whether the file has not been released and still exists.
func (t *TempFile) Valid() bool {
	if t == nil || t.released.Load() {
		return false
	}
	_, err := os.Stat(t.path)
	return err == nil
}

// Release removes the file. A file already gone is not an error.
func (t *TempFile) Release() error {
	if t == nil {
		return nil
	}
	t.once.Do(func() {
		t.released.Store(true)
		if err := os.Remove(t.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.err = fmt.Errorf("remove temp file: %w", err)
		}
	})
	return t.err
}

// ReadAll returns the file's contents.
func (t *TempFile) ReadAll() ([]byte, error) {
	return os.ReadFile(t.path)
}
