// Package storage defines the Backend interface for persistent file trees
// and provides a config-driven factory over the available implementations.
// Backends are asynchronous and handle-based; the cached filesystem in
// internal/cachefs is their only consumer and presents them synchronously.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a handle or child name no longer exists in
// the backing store. Flush logic treats it as tolerable on removal.
var ErrNotFound = errors.New("storage: not found")

// Handle is an opaque, backend-specific reference to one node of the
// backing tree. A nil Handle means the node has never been persisted.
type Handle any

// Child describes one entry returned by List.
type Child struct {
	Name   string
	IsDir  bool
	Handle Handle
}

// Backend is the interface every storage implementation must satisfy.
// All methods may block on I/O and honor ctx cancellation.
type Backend interface {
	// Root returns the handle of the tree root, creating it if the
	// backing store is empty.
	Root(ctx context.Context) (Handle, error)

	// List enumerates the children of a directory handle.
	List(ctx context.Context, dir Handle) ([]Child, error)

	// ReadFile returns the whole content of a file handle.
	ReadFile(ctx context.Context, file Handle) ([]byte, error)

	// WriteFile replaces the content of a file handle.
	WriteFile(ctx context.Context, file Handle, body io.Reader) error

	// Create adds a child under parent and returns its handle.
	Create(ctx context.Context, parent Handle, name string, dir bool) (Handle, error)

	// Remove deletes the named child of parent. The child must have no
	// children of its own; callers recurse.
	Remove(ctx context.Context, parent Handle, name string) error

	// Type returns the backend type identifier ("memory", "local", "s3",
	// "postgres").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
