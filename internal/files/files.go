// Package files holds the artifact ownership helpers the pipeline uses to
// keep or clean up recordings and intermediate audio.
package files

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotFound reports a path that does not exist.
var ErrNotFound = errors.New("file not found")

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ValidateExists returns ErrNotFound (wrapped with the path) when path does
// not exist.
func ValidateExists(path string) error {
	if Exists(path) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Remove deletes path. Unlike a cleanup, removing a file that is already
// gone is an error here.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("cannot remove %s: %w", path, err)
	}
	return nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}
	return nil
}

// Temp owns a file until Keep is called. The usual shape is
//
//	tmp := files.NewTemp(path)
//	defer tmp.Cleanup()
//
// with Keep() on the success path when the file should outlive the run.
type Temp struct {
	path string
	kept bool
}

func NewTemp(path string) *Temp {
	return &Temp{path: path}
}

func (t *Temp) Path() string {
	return t.path
}

// Keep releases ownership; Cleanup becomes a no-op.
func (t *Temp) Keep() {
	t.kept = true
}

// Cleanup removes the file unless it was kept. Cleaning up a file that is
// already gone is fine.
func (t *Temp) Cleanup() error {
	if t.kept {
		return nil
	}
	err := os.Remove(t.path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("cannot remove %s: %w", t.path, err)
}
