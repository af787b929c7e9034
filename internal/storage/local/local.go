// Package local provides a storage backend rooted in a billy filesystem.
// Production sessions mount a directory of the host disk through osfs;
// tests substitute an in-memory billy filesystem.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/jcollard/webshell/internal/storage"
)

// Config holds local backend settings.
type Config struct {
	RootPath   string `json:"root_path"`
	CreateDirs bool   `json:"create_dirs"`
}

// Backend implements storage.Backend over a billy.Filesystem. Handles are
// slash-separated paths relative to the filesystem root; the root handle
// is ".".
type Backend struct {
	fs   billy.Filesystem
	root string // host path, informational only
}

// New creates a backend over the host directory cfg.RootPath.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Backend{fs: osfs.New(cfg.RootPath), root: cfg.RootPath}, nil
}

// NewFromJSON creates a Backend from raw JSON config.
func NewFromJSON(raw json.RawMessage) (*Backend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse local config: %w", err)
	}
	return New(cfg)
}

// NewWithFilesystem wraps an existing billy filesystem. Tests pass memfs.
func NewWithFilesystem(fs billy.Filesystem) *Backend {
	return &Backend{fs: fs}
}

// RootPath returns the host directory the backend is rooted at, or "" when
// it wraps a synthetic filesystem. The change watcher uses it.
func (b *Backend) RootPath() string { return b.root }

func (b *Backend) Root(ctx context.Context) (storage.Handle, error) {
	return ".", nil
}

func (b *Backend) List(ctx context.Context, dir storage.Handle) ([]storage.Child, error) {
	p, err := asPath(dir)
	if err != nil {
		return nil, err
	}

	infos, err := b.fs.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("readdir %s: %w", p, err)
	}

	children := make([]storage.Child, 0, len(infos))
	for _, info := range infos {
		children = append(children, storage.Child{
			Name:   info.Name(),
			IsDir:  info.IsDir(),
			Handle: path.Join(p, info.Name()),
		})
	}
	return children, nil
}

func (b *Backend) ReadFile(ctx context.Context, file storage.Handle) ([]byte, error) {
	p, err := asPath(file)
	if err != nil {
		return nil, err
	}

	data, err := util.ReadFile(b.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

func (b *Backend) WriteFile(ctx context.Context, file storage.Handle, body io.Reader) error {
	p, err := asPath(file)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := util.WriteFile(b.fs, p, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (b *Backend) Create(ctx context.Context, parent storage.Handle, name string, dir bool) (storage.Handle, error) {
	p, err := asPath(parent)
	if err != nil {
		return nil, err
	}

	child := path.Join(p, name)
	if dir {
		if err := b.fs.MkdirAll(child, 0755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", child, err)
		}
		return child, nil
	}

	if _, err := b.fs.Stat(child); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", child, err)
		}
		if err := util.WriteFile(b.fs, child, nil, 0644); err != nil {
			return nil, fmt.Errorf("create %s: %w", child, err)
		}
	}
	return child, nil
}

func (b *Backend) Remove(ctx context.Context, parent storage.Handle, name string) error {
	p, err := asPath(parent)
	if err != nil {
		return err
	}

	child := path.Join(p, name)
	if err := b.fs.Remove(child); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", child, err)
	}
	return nil
}

func (b *Backend) Type() string { return "local" }

func (b *Backend) Close() error { return nil }

func asPath(h storage.Handle) (string, error) {
	p, ok := h.(string)
	if !ok || p == "" {
		return "", storage.ErrNotFound
	}
	return p, nil
}
