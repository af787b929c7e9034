package cachefs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/jcollard/webshell/internal/logging"
	"github.com/jcollard/webshell/internal/metrics"
	"github.com/jcollard/webshell/internal/pathutil"
	"github.com/jcollard/webshell/internal/storage"
	"github.com/jcollard/webshell/internal/vfs"
)

type opKind int

const (
	opWrite opKind = iota
	opDelete
	opMkdir
)

func (k opKind) String() string {
	switch k {
	case opWrite:
		return "write"
	case opDelete:
		return "delete"
	default:
		return "mkdir"
	}
}

// queuedOp is one pending mutation. The payload is captured at enqueue time
// so flush does not depend on the cache still holding the entry.
type queuedOp struct {
	kind     opKind
	path     string
	text     string
	binary   []byte
	isBinary bool
}

func (f *FileSystem) enqueue(op queuedOp) {
	f.queue = append(f.queue, op)
	metrics.SetQueueDepth(len(f.queue))
}

// Pending returns the number of operations waiting for the next Flush.
func (f *FileSystem) Pending() int { return len(f.queue) }

// Initialize loads the whole backing tree into a brand-new cache map and
// swaps it in atomically once the walk completes, so readers never observe
// a half-populated tree. Files are classified binary or text by extension.
func (f *FileSystem) Initialize(ctx context.Context) error {
	start := time.Now()

	rootHandle, err := f.backend.Root(ctx)
	if err != nil {
		return vfs.NewError("initialize", "/", fmt.Errorf("%w: %v", vfs.ErrUnavailable, err))
	}

	fresh := make(map[string]*entry)
	root := newDirEntry()
	root.handle = rootHandle
	root.state = statePersisted
	fresh["/"] = root

	var total uint64
	if err := f.load(ctx, fresh, "/", root, &total); err != nil {
		return err
	}

	f.entries = fresh
	if _, ok := f.entries[f.cwd]; !ok {
		f.cwd = "/"
	}

	metrics.ObserveInitialize(time.Since(start))
	metrics.SetCacheEntries(len(f.entries))
	logging.Info("cache initialized",
		zap.String("backend", f.backend.Type()),
		zap.Int("entries", len(f.entries)),
		zap.String("loaded", humanize.Bytes(total)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// load recursively walks one directory of the backing tree into the fresh
// map. The live cache is never touched.
func (f *FileSystem) load(ctx context.Context, fresh map[string]*entry, dir string, de *entry, total *uint64) error {
	children, err := f.backend.List(ctx, de.handle)
	if err != nil {
		return fmt.Errorf("load %s: %w", dir, err)
	}

	for _, child := range children {
		p := childPath(dir, child.Name)
		de.children[child.Name] = struct{}{}

		if child.IsDir {
			ce := newDirEntry()
			ce.handle = child.Handle
			ce.state = statePersisted
			fresh[p] = ce
			if err := f.load(ctx, fresh, p, ce, total); err != nil {
				return err
			}
			continue
		}

		data, err := f.backend.ReadFile(ctx, child.Handle)
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		*total += uint64(len(data))

		ce := &entry{kind: vfs.KindFile, handle: child.Handle, state: statePersisted}
		if f.isBinaryName(p) {
			ce.binary = data
			ce.isBinary = true
		} else {
			ce.text = string(data)
		}
		fresh[p] = ce
	}
	return nil
}

// Flush persists the queued operations. The queue is swapped for an empty
// one before any backend call, so operations issued while a flush is in
// flight join the next queue instead of a partially-drained one.
//
// A failed operation is logged and dropped, never re-raised: the caller
// already observed success against the cache, and the remedy is another
// Flush. There is no durability guarantee on the first attempt.
func (f *FileSystem) Flush(ctx context.Context) {
	ops := f.queue
	f.queue = nil
	metrics.SetQueueDepth(0)

	if len(ops) == 0 {
		return
	}

	// Handles materialized for nodes the cache no longer tracks (written
	// then deleted within one queue generation).
	scratch := make(map[string]storage.Handle)

	var persisted, dropped int
	var bytesOut uint64
	for _, op := range ops {
		var err error
		switch op.kind {
		case opWrite:
			err = f.flushWrite(ctx, op, scratch)
			if err == nil {
				if op.isBinary {
					bytesOut += uint64(len(op.binary))
				} else {
					bytesOut += uint64(len(op.text))
				}
			}
		case opMkdir:
			_, err = f.ensureDirHandle(ctx, op.path, scratch)
		case opDelete:
			err = f.flushDelete(ctx, op, scratch)
		}

		if err != nil {
			dropped++
			metrics.RecordFlushOp(op.kind.String(), "dropped")
			logging.Error("flush: operation dropped",
				zap.String("op", op.kind.String()),
				zap.String("path", op.path),
				zap.Error(err))
			continue
		}
		persisted++
		metrics.RecordFlushOp(op.kind.String(), "persisted")
	}

	logging.Debug("flush complete",
		zap.Int("persisted", persisted),
		zap.Int("dropped", dropped),
		zap.String("written", humanize.Bytes(bytesOut)))
}

// flushWrite persists one write, materializing unpersisted ancestors first.
func (f *FileSystem) flushWrite(ctx context.Context, op queuedOp, scratch map[string]storage.Handle) error {
	parentHandle, err := f.ensureDirHandle(ctx, pathutil.Parent(op.path), scratch)
	if err != nil {
		return err
	}

	handle := f.lookupHandle(op.path, scratch)
	if handle == nil {
		e := f.entries[op.path]
		if e != nil {
			e.state = statePersisting
		}
		handle, err = f.backend.Create(ctx, parentHandle, pathutil.Basename(op.path), false)
		if err != nil {
			if e != nil {
				e.state = stateUnpersisted
			}
			return fmt.Errorf("create: %w", err)
		}
		if e != nil && e.kind == vfs.KindFile {
			e.handle = handle
			e.state = statePersisted
		} else {
			scratch[op.path] = handle
		}
	}

	payload := op.binary
	if !op.isBinary {
		payload = []byte(op.text)
	}
	if err := f.backend.WriteFile(ctx, handle, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ensureDirHandle returns a live handle for the directory at path, walking
// up to the nearest persisted ancestor and materializing every missing
// level below it.
func (f *FileSystem) ensureDirHandle(ctx context.Context, path string, scratch map[string]storage.Handle) (storage.Handle, error) {
	if e, ok := f.entries[path]; ok && e.handle != nil {
		return e.handle, nil
	}
	if h, ok := scratch[path]; ok {
		return h, nil
	}
	if path == "/" {
		h, err := f.backend.Root(ctx)
		if err != nil {
			return nil, fmt.Errorf("root: %w", err)
		}
		if e, ok := f.entries["/"]; ok {
			e.handle = h
			e.state = statePersisted
		}
		return h, nil
	}

	parentHandle, err := f.ensureDirHandle(ctx, pathutil.Parent(path), scratch)
	if err != nil {
		return nil, err
	}

	e := f.entries[path]
	if e != nil {
		e.state = statePersisting
	}
	h, err := f.backend.Create(ctx, parentHandle, pathutil.Basename(path), true)
	if err != nil {
		if e != nil {
			e.state = stateUnpersisted
		}
		return nil, fmt.Errorf("mkdir %s: %w", path, err)
	}
	if e != nil && e.kind == vfs.KindDir {
		e.handle = h
		e.state = statePersisted
	} else {
		scratch[path] = h
	}
	return h, nil
}

func (f *FileSystem) lookupHandle(path string, scratch map[string]storage.Handle) storage.Handle {
	if e, ok := f.entries[path]; ok && e.handle != nil {
		return e.handle
	}
	if h, ok := scratch[path]; ok {
		return h
	}
	return nil
}

// flushDelete removes a node from the backing store recursively, tolerating
// a partially-flushed tree: anything already missing counts as removed.
func (f *FileSystem) flushDelete(ctx context.Context, op queuedOp, scratch map[string]storage.Handle) error {
	parent := pathutil.Parent(op.path)
	parentHandle := f.lookupHandle(parent, scratch)
	if parentHandle == nil {
		// Parent was never persisted, so neither was the target.
		return nil
	}
	return f.removeRecursive(ctx, parentHandle, pathutil.Basename(op.path))
}

func (f *FileSystem) removeRecursive(ctx context.Context, parentHandle storage.Handle, name string) error {
	children, err := f.backend.List(ctx, parentHandle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("list: %w", err)
	}

	for _, child := range children {
		if child.Name != name {
			continue
		}
		if child.IsDir {
			grandchildren, err := f.backend.List(ctx, child.Handle)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("list %s: %w", name, err)
			}
			for _, gc := range grandchildren {
				if err := f.removeRecursive(ctx, child.Handle, gc.Name); err != nil {
					return err
				}
			}
		}
		if err := f.backend.Remove(ctx, parentHandle, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
		return nil
	}
	// Already gone.
	return nil
}

// Refresh reconciles the cache with out-of-band changes to the backing
// store: pending local writes are flushed first, then the tree is reloaded.
func (f *FileSystem) Refresh(ctx context.Context) error {
	f.Flush(ctx)
	return f.Initialize(ctx)
}
