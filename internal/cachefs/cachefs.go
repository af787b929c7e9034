// Package cachefs presents the synchronous vfs.FileSystem contract over an
// asynchronous storage backend. Every node of the backing tree is mirrored
// in an in-memory cache; reads never touch the backend, mutations apply to
// the cache immediately and are persisted later by Flush.
//
// The core is single-threaded by design: Initialize and Flush are the only
// suspending operations and the caller is expected not to interleave them
// with cache mutations. There are no internal locks.
package cachefs

import (
	"sort"
	"strings"

	"github.com/jcollard/webshell/internal/pathutil"
	"github.com/jcollard/webshell/internal/storage"
	"github.com/jcollard/webshell/internal/vfs"
)

type persistState int

const (
	// stateUnpersisted marks a node created locally that has no backing
	// handle yet.
	stateUnpersisted persistState = iota
	// statePersisting marks a node whose backing handle is being
	// materialized by an in-flight flush.
	statePersisting
	// statePersisted marks a node with a live backing handle.
	statePersisted
)

// entry mirrors one filesystem node. A file holds exactly one content form;
// a directory's children set always matches the existing child entries.
type entry struct {
	kind     vfs.EntryKind
	state    persistState
	handle   storage.Handle // nil until first persisted
	text     string
	binary   []byte
	isBinary bool
	children map[string]struct{}
}

func newDirEntry() *entry {
	return &entry{kind: vfs.KindDir, children: make(map[string]struct{})}
}

// defaultBinaryExts classifies files loaded from the backing store. Writes
// declare their form explicitly instead.
var defaultBinaryExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".wasm": {}, ".bin": {},
	".exe": {}, ".so": {}, ".o": {}, ".class": {}, ".jar": {},
	".mp3": {}, ".wav": {}, ".ogg": {}, ".mp4": {}, ".webm": {}, ".woff2": {},
}

// FileSystem implements vfs.FileSystem and vfs.BinaryFileSystem over a
// storage.Backend.
type FileSystem struct {
	backend    storage.Backend
	cwd        string
	entries    map[string]*entry
	queue      []queuedOp
	binaryExts map[string]struct{}
}

// New creates an empty cached filesystem over backend. Call Initialize to
// load the backing tree before serving reads.
func New(backend storage.Backend) *FileSystem {
	entries := map[string]*entry{"/": newDirEntry()}
	return &FileSystem{
		backend:    backend,
		cwd:        "/",
		entries:    entries,
		binaryExts: defaultBinaryExts,
	}
}

// Backend returns the backing store, for session wiring.
func (f *FileSystem) Backend() storage.Backend { return f.backend }

func (f *FileSystem) resolve(p string) string {
	return pathutil.Resolve(f.cwd, p)
}

func (f *FileSystem) isBinaryName(p string) bool {
	_, ok := f.binaryExts[pathutil.Ext(p)]
	return ok
}

// Cwd returns the current working directory.
func (f *FileSystem) Cwd() string { return f.cwd }

// SetCwd changes the working directory to an existing directory.
func (f *FileSystem) SetCwd(p string) error {
	abs := f.resolve(p)
	e, ok := f.entries[abs]
	if !ok {
		return vfs.NewError("cd", abs, vfs.ErrNotFound)
	}
	if e.kind != vfs.KindDir {
		return vfs.NewError("cd", abs, vfs.ErrNotDir)
	}
	f.cwd = abs
	return nil
}

// Exists reports whether a node is present in the cache.
func (f *FileSystem) Exists(p string) bool {
	_, ok := f.entries[f.resolve(p)]
	return ok
}

// IsDir reports whether p names a directory.
func (f *FileSystem) IsDir(p string) bool {
	e, ok := f.entries[f.resolve(p)]
	return ok && e.kind == vfs.KindDir
}

// IsFile reports whether p names a file.
func (f *FileSystem) IsFile(p string) bool {
	e, ok := f.entries[f.resolve(p)]
	return ok && e.kind == vfs.KindFile
}

// List returns the children of a directory sorted by name.
func (f *FileSystem) List(p string) ([]vfs.Entry, error) {
	abs := f.resolve(p)
	e, ok := f.entries[abs]
	if !ok {
		return nil, vfs.NewError("list", abs, vfs.ErrNotFound)
	}
	if e.kind != vfs.KindDir {
		return nil, vfs.NewError("list", abs, vfs.ErrNotDir)
	}

	names := make([]string, 0, len(e.children))
	for name := range e.children {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]vfs.Entry, 0, len(names))
	for _, name := range names {
		childPath := childPath(abs, name)
		child := f.entries[childPath]
		out = append(out, vfs.Entry{Name: name, Kind: child.kind, Path: childPath})
	}
	return out, nil
}

// Read returns the text content of a file. Binary entries cannot be read
// through the text path.
func (f *FileSystem) Read(p string) (string, error) {
	abs := f.resolve(p)
	e, ok := f.entries[abs]
	if !ok {
		return "", vfs.NewError("read", abs, vfs.ErrNotFound)
	}
	if e.kind != vfs.KindFile {
		return "", vfs.NewError("read", abs, vfs.ErrNotFile)
	}
	if e.isBinary {
		return "", vfs.NewError("read", abs, vfs.ErrIsBinary)
	}
	return e.text, nil
}

// Write replaces the content of a file with text, creating the file when it
// does not exist. The change is visible immediately and queued for the next
// Flush.
func (f *FileSystem) Write(p, content string) error {
	abs := f.resolve(p)
	e, err := f.prepareWrite(abs)
	if err != nil {
		return err
	}
	e.text = content
	e.binary = nil
	e.isBinary = false
	f.enqueue(queuedOp{kind: opWrite, path: abs, text: content})
	return nil
}

// ReadBinary returns raw bytes. Text entries are implicitly encoded.
func (f *FileSystem) ReadBinary(p string) ([]byte, error) {
	abs := f.resolve(p)
	e, ok := f.entries[abs]
	if !ok {
		return nil, vfs.NewError("read", abs, vfs.ErrNotFound)
	}
	if e.kind != vfs.KindFile {
		return nil, vfs.NewError("read", abs, vfs.ErrNotFile)
	}
	if e.isBinary {
		out := make([]byte, len(e.binary))
		copy(out, e.binary)
		return out, nil
	}
	return []byte(e.text), nil
}

// WriteBinary replaces the content of a file with raw bytes and marks the
// entry binary.
func (f *FileSystem) WriteBinary(p string, data []byte) error {
	abs := f.resolve(p)
	e, err := f.prepareWrite(abs)
	if err != nil {
		return err
	}
	e.binary = make([]byte, len(data))
	copy(e.binary, data)
	e.text = ""
	e.isBinary = true
	f.enqueue(queuedOp{kind: opWrite, path: abs, binary: e.binary, isBinary: true})
	return nil
}

// IsBinary reports whether the entry at p holds binary content.
func (f *FileSystem) IsBinary(p string) bool {
	e, ok := f.entries[f.resolve(p)]
	return ok && e.isBinary
}

// prepareWrite validates the target and parent, creating a fresh
// unpersisted file entry when needed.
func (f *FileSystem) prepareWrite(abs string) (*entry, error) {
	if e, ok := f.entries[abs]; ok {
		if e.kind != vfs.KindFile {
			return nil, vfs.NewError("write", abs, vfs.ErrNotFile)
		}
		return e, nil
	}

	parent := pathutil.Parent(abs)
	pe, ok := f.entries[parent]
	if !ok {
		return nil, vfs.NewError("write", parent, vfs.ErrNotFound)
	}
	if pe.kind != vfs.KindDir {
		return nil, vfs.NewError("write", parent, vfs.ErrNotDir)
	}

	e := &entry{kind: vfs.KindFile, state: stateUnpersisted}
	f.entries[abs] = e
	pe.children[pathutil.Basename(abs)] = struct{}{}
	return e, nil
}

// Mkdir creates a single directory under an existing parent.
func (f *FileSystem) Mkdir(p string) error {
	abs := f.resolve(p)
	if _, ok := f.entries[abs]; ok {
		return vfs.NewError("mkdir", abs, vfs.ErrExists)
	}

	parent := pathutil.Parent(abs)
	pe, ok := f.entries[parent]
	if !ok {
		return vfs.NewError("mkdir", parent, vfs.ErrNotFound)
	}
	if pe.kind != vfs.KindDir {
		return vfs.NewError("mkdir", parent, vfs.ErrNotDir)
	}

	f.entries[abs] = newDirEntry()
	pe.children[pathutil.Basename(abs)] = struct{}{}
	f.enqueue(queuedOp{kind: opMkdir, path: abs})
	return nil
}

// Delete removes a file or an empty directory from the cache and queues the
// removal.
func (f *FileSystem) Delete(p string) error {
	abs := f.resolve(p)
	if abs == "/" {
		return vfs.NewError("delete", abs, vfs.ErrReadOnly)
	}

	e, ok := f.entries[abs]
	if !ok {
		return vfs.NewError("delete", abs, vfs.ErrNotFound)
	}
	if e.kind == vfs.KindDir && len(e.children) > 0 {
		return vfs.NewError("delete", abs, vfs.ErrNotEmpty)
	}

	delete(f.entries, abs)
	if pe, ok := f.entries[pathutil.Parent(abs)]; ok {
		delete(pe.children, pathutil.Basename(abs))
	}

	// A deleted node inside a deleted directory would leave cwd dangling.
	if f.cwd == abs || strings.HasPrefix(f.cwd, abs+"/") {
		f.cwd = "/"
	}

	f.enqueue(queuedOp{kind: opDelete, path: abs})
	return nil
}

func childPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
