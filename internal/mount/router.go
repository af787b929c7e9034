// Package mount composes independent filesystems into one namespace. Each
// mount occupies a single name directly below the synthetic root; paths are
// translated at the boundary so backends remain unaware of where they are
// mounted.
package mount

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jcollard/webshell/internal/logging"
	"github.com/jcollard/webshell/internal/metrics"
	"github.com/jcollard/webshell/internal/pathutil"
	"github.com/jcollard/webshell/internal/vfs"
)

// Point describes one mounted filesystem.
type Point struct {
	// MountPath is the absolute mount location, exactly one segment below
	// root ("/project").
	MountPath string
	// Backend is the filesystem serving everything beneath MountPath.
	Backend vfs.FileSystem
	// DisplayName labels the mount in root listings; defaults to the
	// mount path segment.
	DisplayName string
	// ReadOnly rejects every mutating call routed into the mount.
	ReadOnly bool
}

// Router implements vfs.FileSystem over a table of mounts. Mount
// configuration errors surface synchronously from Mount and Unmount;
// path-level failures follow the shared vfs error taxonomy.
type Router struct {
	mounts map[string]*Point // mountPath -> point
	cwd    string
}

// NewRouter creates an empty router with cwd at the synthetic root.
func NewRouter() *Router {
	return &Router{mounts: make(map[string]*Point), cwd: "/"}
}

// Mount adds a filesystem to the namespace. The mount path must normalize
// to exactly one segment below root and must not collide with an existing
// mount.
func (r *Router) Mount(p Point) error {
	mp := pathutil.Normalize(p.MountPath)
	if mp == "/" {
		return fmt.Errorf("mount %s: cannot mount at root", p.MountPath)
	}
	if pathutil.Parent(mp) != "/" {
		return fmt.Errorf("mount %s: mount path must be one segment below root", p.MountPath)
	}
	if _, ok := r.mounts[mp]; ok {
		return fmt.Errorf("mount %s: mount path already in use", mp)
	}
	if p.Backend == nil {
		return fmt.Errorf("mount %s: nil backend", mp)
	}

	p.MountPath = mp
	if p.DisplayName == "" {
		p.DisplayName = strings.TrimPrefix(mp, "/")
	}
	r.mounts[mp] = &p

	logging.Info("mounted workspace",
		zap.String("path", mp),
		zap.String("name", p.DisplayName),
		zap.Bool("read_only", p.ReadOnly))
	return nil
}

// Unmount removes a mount. If cwd pointed inside the mount it resets to
// root rather than failing.
func (r *Router) Unmount(path string) error {
	mp := pathutil.Normalize(path)
	if _, ok := r.mounts[mp]; !ok {
		return fmt.Errorf("unmount %s: not mounted", mp)
	}
	delete(r.mounts, mp)

	if r.cwd == mp || strings.HasPrefix(r.cwd, mp+"/") {
		r.cwd = "/"
	}

	logging.Info("unmounted workspace", zap.String("path", mp))
	return nil
}

// Points returns the current mounts sorted by display name.
func (r *Router) Points() []Point {
	out := make([]Point, 0, len(r.mounts))
	for _, p := range r.mounts {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// route splits an absolute path into its mount and the path within that
// mount's backend ("/" for the mount point itself).
func (r *Router) route(abs string) (*Point, string, bool) {
	for mp, p := range r.mounts {
		if abs == mp {
			return p, "/", true
		}
		if strings.HasPrefix(abs, mp+"/") {
			return p, abs[len(mp):], true
		}
	}
	return nil, "", false
}

func (r *Router) resolve(p string) string {
	return pathutil.Resolve(r.cwd, p)
}

// rebase translates an entry path from backend coordinates back into the
// mounted namespace.
func rebase(mountPath, backendPath string) string {
	if backendPath == "/" {
		return mountPath
	}
	return mountPath + backendPath
}

// Cwd returns the current working directory in the composed namespace.
func (r *Router) Cwd() string { return r.cwd }

// SetCwd changes directory within the composed namespace. Root and mount
// points are always valid targets; anything deeper must be a directory in
// the owning backend.
func (r *Router) SetCwd(p string) error {
	abs := r.resolve(p)
	if abs == "/" {
		r.cwd = "/"
		return nil
	}

	point, inner, ok := r.route(abs)
	if !ok {
		return vfs.NewError("cd", abs, vfs.ErrNotFound)
	}
	if inner != "/" {
		if !point.Backend.Exists(inner) {
			return vfs.NewError("cd", abs, vfs.ErrNotFound)
		}
		if !point.Backend.IsDir(inner) {
			return vfs.NewError("cd", abs, vfs.ErrNotDir)
		}
	}
	r.cwd = abs
	return nil
}

// Exists reports whether abs names root, a mount point, or a node within a
// mount.
func (r *Router) Exists(p string) bool {
	abs := r.resolve(p)
	if abs == "/" {
		return true
	}
	point, inner, ok := r.route(abs)
	if !ok {
		return false
	}
	if inner == "/" {
		return true
	}
	return point.Backend.Exists(inner)
}

// IsDir reports whether abs is a directory; root and mount points are.
func (r *Router) IsDir(p string) bool {
	abs := r.resolve(p)
	if abs == "/" {
		return true
	}
	point, inner, ok := r.route(abs)
	if !ok {
		return false
	}
	if inner == "/" {
		return true
	}
	return point.Backend.IsDir(inner)
}

// IsFile reports whether abs is a file; root and mount points never are.
func (r *Router) IsFile(p string) bool {
	abs := r.resolve(p)
	point, inner, ok := r.route(abs)
	if !ok || inner == "/" {
		return false
	}
	return point.Backend.IsFile(inner)
}

// List returns children. The root listing is synthesized: one directory
// entry per mount, sorted by display name. Everything else delegates with
// entry paths re-prefixed into the namespace.
func (r *Router) List(p string) (entries []vfs.Entry, err error) {
	defer func() { metrics.RecordFSOp("list", err) }()

	abs := r.resolve(p)
	if abs == "/" {
		points := r.Points()
		out := make([]vfs.Entry, 0, len(points))
		for _, pt := range points {
			out = append(out, vfs.Entry{
				Name: pt.DisplayName,
				Kind: vfs.KindDir,
				Path: pt.MountPath,
			})
		}
		return out, nil
	}

	point, inner, ok := r.route(abs)
	if !ok {
		return nil, vfs.NewError("list", abs, vfs.ErrNotFound)
	}
	entries, err = point.Backend.List(inner)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Path = rebase(point.MountPath, entries[i].Path)
	}
	return entries, nil
}

// Read delegates to the owning mount. Root and mount points are not files.
func (r *Router) Read(p string) (content string, err error) {
	defer func() { metrics.RecordFSOp("read", err) }()

	abs := r.resolve(p)
	if abs == "/" {
		return "", vfs.NewError("read", abs, vfs.ErrNotFile)
	}
	point, inner, ok := r.route(abs)
	if !ok {
		return "", vfs.NewError("read", abs, vfs.ErrNotFound)
	}
	if inner == "/" {
		return "", vfs.NewError("read", abs, vfs.ErrNotFile)
	}
	return point.Backend.Read(inner)
}

// Write delegates to the owning mount; paths outside every mount are
// rejected as out-of-mount, and read-only mounts reject all mutations.
func (r *Router) Write(p, content string) (err error) {
	defer func() { metrics.RecordFSOp("write", err) }()

	abs := r.resolve(p)
	point, inner, err := r.routeMutable("write", abs)
	if err != nil {
		return err
	}
	return point.Backend.Write(inner, content)
}

// Mkdir delegates to the owning mount.
func (r *Router) Mkdir(p string) (err error) {
	defer func() { metrics.RecordFSOp("mkdir", err) }()

	abs := r.resolve(p)
	point, inner, err := r.routeMutable("mkdir", abs)
	if err != nil {
		return err
	}
	return point.Backend.Mkdir(inner)
}

// Delete delegates to the owning mount. Mount points themselves are
// removed with Unmount, never Delete.
func (r *Router) Delete(p string) (err error) {
	defer func() { metrics.RecordFSOp("delete", err) }()

	abs := r.resolve(p)
	point, inner, err := r.routeMutable("delete", abs)
	if err != nil {
		return err
	}
	return point.Backend.Delete(inner)
}

// routeMutable routes a mutating call, enforcing the root, mount-point and
// read-only rules shared by Write, Mkdir and Delete.
func (r *Router) routeMutable(op, abs string) (*Point, string, error) {
	if abs == "/" {
		return nil, "", vfs.NewError(op, abs, vfs.ErrReadOnly)
	}
	point, inner, ok := r.route(abs)
	if !ok {
		return nil, "", vfs.NewError(op, abs, vfs.ErrOutOfMount)
	}
	if inner == "/" {
		return nil, "", vfs.NewError(op, abs, vfs.ErrReadOnly)
	}
	if point.ReadOnly {
		return nil, "", vfs.NewError(op, abs, vfs.ErrReadOnly)
	}
	return point, inner, nil
}

// ReadBinary delegates to mounts whose backend has the binary capability.
// Root and mount points report not-a-file, matching the text Read path.
func (r *Router) ReadBinary(p string) ([]byte, error) {
	abs := r.resolve(p)
	if abs == "/" {
		return nil, vfs.NewError("read", abs, vfs.ErrNotFile)
	}
	point, inner, ok := r.route(abs)
	if !ok {
		return nil, vfs.NewError("read", abs, vfs.ErrNotFound)
	}
	if inner == "/" {
		return nil, vfs.NewError("read", abs, vfs.ErrNotFile)
	}
	bfs, ok := point.Backend.(vfs.BinaryFileSystem)
	if !ok {
		return nil, vfs.NewError("read", abs, vfs.ErrNotFile)
	}
	return bfs.ReadBinary(inner)
}

// WriteBinary delegates to mounts whose backend has the binary capability.
func (r *Router) WriteBinary(p string, data []byte) error {
	abs := r.resolve(p)
	point, inner, err := r.routeMutable("write", abs)
	if err != nil {
		return err
	}
	bfs, ok := point.Backend.(vfs.BinaryFileSystem)
	if !ok {
		return vfs.NewError("write", abs, vfs.ErrNotFile)
	}
	return bfs.WriteBinary(inner, data)
}

// IsBinary reports binary classification within the owning mount.
func (r *Router) IsBinary(p string) bool {
	abs := r.resolve(p)
	point, inner, ok := r.route(abs)
	if !ok || inner == "/" {
		return false
	}
	bfs, ok := point.Backend.(vfs.BinaryFileSystem)
	if !ok {
		return false
	}
	return bfs.IsBinary(inner)
}
