package vfs

import (
	"errors"
	"fmt"
)

// Error kinds shared by every FileSystem implementation. Callers match them
// with errors.Is; messages always name the resolved absolute path.
var (
	ErrNotFound    = errors.New("no such file or directory")
	ErrNotDir      = errors.New("not a directory")
	ErrNotFile     = errors.New("not a file")
	ErrExists      = errors.New("file exists")
	ErrNotEmpty    = errors.New("directory not empty")
	ErrReadOnly    = errors.New("read-only file system")
	ErrOutOfMount  = errors.New("not within any mounted workspace")
	ErrIsBinary    = errors.New("is a binary file")
	ErrUnavailable = errors.New("backend unavailable")
)

// PathError records a failed operation, the absolute path it targeted and
// the error kind. Its message follows "<verb>: <absolute path>: <reason>",
// which is stable enough to assert in tests.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// NewError builds a PathError for op against the absolute path.
func NewError(op, path string, kind error) error {
	return &PathError{Op: op, Path: path, Err: kind}
}
