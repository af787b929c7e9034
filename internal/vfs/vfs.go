// Package vfs defines the virtual filesystem contract the shell core is
// built around. Commands, the mount router and the cached filesystem all
// program against FileSystem; swapping storage technology happens beneath
// this seam.
package vfs

// EntryKind distinguishes files from directories in listings.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

func (k EntryKind) String() string {
	if k == KindDir {
		return "directory"
	}
	return "file"
}

// Entry describes one child produced by List. Path is absolute from the
// perspective of the filesystem that produced it.
type Entry struct {
	Name string
	Kind EntryKind
	Path string
}

// FileSystem is the synchronous filesystem surface. Every method resolves
// its path argument relative to the current working directory first, so
// callers may pass relative paths freely.
//
// Implementations report failures through PathError values wrapping the
// shared error kinds in this package.
type FileSystem interface {
	// Cwd returns the current working directory, always normalized.
	Cwd() string

	// SetCwd changes the working directory. The target must exist and be
	// a directory.
	SetCwd(path string) error

	Exists(path string) bool
	IsDir(path string) bool
	IsFile(path string) bool

	// List returns the children of a directory, sorted by name.
	List(path string) ([]Entry, error)

	// Read returns the text content of a file.
	Read(path string) (string, error)

	// Write replaces the content of path, creating the file if needed.
	// The parent directory must exist.
	Write(path, content string) error

	// Mkdir creates a single directory. The parent must exist.
	Mkdir(path string) error

	// Delete removes a file or an empty directory.
	Delete(path string) error
}

// BinaryFileSystem is the optional binary-content capability. Filesystems
// that track binary data implement it alongside FileSystem; callers probe
// with a type assertion.
type BinaryFileSystem interface {
	// ReadBinary returns raw bytes. Reading a text entry this way is
	// allowed and returns its encoded content.
	ReadBinary(path string) ([]byte, error)

	// WriteBinary replaces the content of path with raw bytes and marks
	// the entry binary.
	WriteBinary(path string, data []byte) error

	// IsBinary reports whether the entry at path holds binary content.
	IsBinary(path string) bool
}
