// Package memory provides an in-process storage backend. It backs scratch
// mounts that need no persistence and doubles as the deterministic test
// backend for the cached filesystem.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jcollard/webshell/internal/storage"
)

type node struct {
	isDir    bool
	content  []byte
	children map[string]*node
}

// Backend implements storage.Backend over an in-process tree.
type Backend struct {
	mu    sync.Mutex
	root  *node
	calls atomic.Int64
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{root: newDir()}
}

// NewFromJSON creates a memory backend; it takes no configuration.
func NewFromJSON(json.RawMessage) (*Backend, error) {
	return New(), nil
}

func newDir() *node {
	return &node{isDir: true, children: make(map[string]*node)}
}

// Calls returns the number of backend operations performed. Tests use it to
// assert that cached reads never reach the backing store.
func (b *Backend) Calls() int64 {
	return b.calls.Load()
}

func (b *Backend) Root(ctx context.Context) (storage.Handle, error) {
	b.calls.Add(1)
	return b.root, nil
}

func (b *Backend) List(ctx context.Context, dir storage.Handle) ([]storage.Child, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls.Add(1)

	n, err := asNode(dir)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, fmt.Errorf("list: handle is not a directory")
	}

	children := make([]storage.Child, 0, len(n.children))
	for name, child := range n.children {
		children = append(children, storage.Child{Name: name, IsDir: child.isDir, Handle: child})
	}
	return children, nil
}

func (b *Backend) ReadFile(ctx context.Context, file storage.Handle) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls.Add(1)

	n, err := asNode(file)
	if err != nil {
		return nil, err
	}
	if n.isDir {
		return nil, fmt.Errorf("read: handle is a directory")
	}
	out := make([]byte, len(n.content))
	copy(out, n.content)
	return out, nil
}

func (b *Backend) WriteFile(ctx context.Context, file storage.Handle, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls.Add(1)

	n, err := asNode(file)
	if err != nil {
		return err
	}
	if n.isDir {
		return fmt.Errorf("write: handle is a directory")
	}
	n.content = data
	return nil
}

func (b *Backend) Create(ctx context.Context, parent storage.Handle, name string, dir bool) (storage.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls.Add(1)

	p, err := asNode(parent)
	if err != nil {
		return nil, err
	}
	if !p.isDir {
		return nil, fmt.Errorf("create %s: parent is not a directory", name)
	}
	if existing, ok := p.children[name]; ok {
		// Create is idempotent for a child of the same kind; flush may
		// retry after a partial failure.
		if existing.isDir == dir {
			return existing, nil
		}
		return nil, fmt.Errorf("create %s: child exists with different kind", name)
	}

	var child *node
	if dir {
		child = newDir()
	} else {
		child = &node{}
	}
	p.children[name] = child
	return child, nil
}

func (b *Backend) Remove(ctx context.Context, parent storage.Handle, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls.Add(1)

	p, err := asNode(parent)
	if err != nil {
		return err
	}
	if _, ok := p.children[name]; !ok {
		return storage.ErrNotFound
	}
	delete(p.children, name)
	return nil
}

func (b *Backend) Type() string { return "memory" }

func (b *Backend) Close() error { return nil }

func asNode(h storage.Handle) (*node, error) {
	n, ok := h.(*node)
	if n == nil || !ok {
		return nil, storage.ErrNotFound
	}
	return n, nil
}
