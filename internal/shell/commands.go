package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcollard/webshell/internal/mount"
	"github.com/jcollard/webshell/internal/pathutil"
	"github.com/jcollard/webshell/internal/proc"
	"github.com/jcollard/webshell/internal/storage"
	"github.com/jcollard/webshell/internal/vfs"
)

// Flusher is satisfied by filesystems with a write-behind queue; the sync
// builtin drains it.
type Flusher interface {
	Flush(ctx context.Context)
}

func ok(stdout string) Result {
	return Result{Stdout: stdout}
}

func fail(format string, args ...any) Result {
	return Result{ExitCode: 1, Stderr: fmt.Sprintf(format, args...)}
}

// Builtins returns the standard file commands. The caller registers them
// on its own registry; nothing here is ambient.
func Builtins() []Command {
	return []Command{
		Simple{CommandName: "pwd", Run: runPwd},
		Simple{CommandName: "cd", Run: runCd},
		Simple{CommandName: "ls", Run: runLs},
		Simple{CommandName: "cat", Run: runCat},
		Simple{CommandName: "echo", Run: runEcho},
		Simple{CommandName: "mkdir", Run: runMkdir},
		Simple{CommandName: "touch", Run: runTouch},
		Simple{CommandName: "cp", Run: runCp},
		Simple{CommandName: "mv", Run: runMv},
		Simple{CommandName: "rm", Run: runRm},
		Simple{CommandName: "df", Run: runDf},
	}
}

func runPwd(args []string, fsys vfs.FileSystem) Result {
	return ok(fsys.Cwd() + "\n")
}

func runCd(args []string, fsys vfs.FileSystem) Result {
	target := "/"
	if len(args) > 0 {
		target = args[0]
	}
	if err := fsys.SetCwd(target); err != nil {
		return fail("%v", err)
	}
	return Result{}
}

func runLs(args []string, fsys vfs.FileSystem) Result {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	entries, err := fsys.List(target)
	if err != nil {
		return fail("%v", err)
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Name)
		if e.Kind == vfs.KindDir {
			b.WriteByte('/')
		}
		b.WriteByte('\n')
	}
	return ok(b.String())
}

func runCat(args []string, fsys vfs.FileSystem) Result {
	if len(args) == 0 {
		return fail("cat: missing operand")
	}

	var b strings.Builder
	for _, arg := range args {
		content, err := fsys.Read(arg)
		if err != nil {
			return fail("cat: %v", err)
		}
		b.WriteString(content)
	}
	return ok(b.String())
}

func runEcho(args []string, fsys vfs.FileSystem) Result {
	return ok(strings.Join(args, " ") + "\n")
}

func runMkdir(args []string, fsys vfs.FileSystem) Result {
	if len(args) == 0 {
		return fail("mkdir: missing operand")
	}
	for _, arg := range args {
		if err := fsys.Mkdir(arg); err != nil {
			return fail("%v", err)
		}
	}
	return Result{}
}

func runTouch(args []string, fsys vfs.FileSystem) Result {
	if len(args) == 0 {
		return fail("touch: missing operand")
	}
	for _, arg := range args {
		if fsys.Exists(arg) {
			continue
		}
		if err := fsys.Write(arg, ""); err != nil {
			return fail("%v", err)
		}
	}
	return Result{}
}

// destPath maps src onto dst, entering dst when it is a directory.
func destPath(fsys vfs.FileSystem, src, dst string) string {
	if fsys.IsDir(dst) {
		return pathutil.Join(pathutil.Resolve(fsys.Cwd(), dst), pathutil.Basename(pathutil.Resolve(fsys.Cwd(), src)))
	}
	return dst
}

// copiesIntoItself reports whether copying the directory src to dst would
// place the destination at or under the source. Such a copy recreates the
// destination inside the tree being walked and never terminates.
func copiesIntoItself(fsys vfs.FileSystem, src, dst string) bool {
	if !fsys.IsDir(src) {
		return false
	}
	absSrc := pathutil.Resolve(fsys.Cwd(), src)
	absDst := pathutil.Resolve(fsys.Cwd(), dst)
	return absDst == absSrc || strings.HasPrefix(absDst, absSrc+"/")
}

// copyTree copies a file or a directory subtree through the text and
// binary read/write paths.
func copyTree(fsys vfs.FileSystem, src, dst string) error {
	if fsys.IsDir(src) {
		if !fsys.Exists(dst) {
			if err := fsys.Mkdir(dst); err != nil {
				return err
			}
		}
		entries, err := fsys.List(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyTree(fsys, e.Path, pathutil.Join(pathutil.Resolve(fsys.Cwd(), dst), e.Name)); err != nil {
				return err
			}
		}
		return nil
	}

	if bfs, ok := fsys.(vfs.BinaryFileSystem); ok && bfs.IsBinary(src) {
		data, err := bfs.ReadBinary(src)
		if err != nil {
			return err
		}
		return bfs.WriteBinary(dst, data)
	}

	content, err := fsys.Read(src)
	if err != nil {
		return err
	}
	return fsys.Write(dst, content)
}

// deleteTree removes a file or directory subtree depth-first.
func deleteTree(fsys vfs.FileSystem, p string) error {
	if fsys.IsDir(p) {
		entries, err := fsys.List(p)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := deleteTree(fsys, e.Path); err != nil {
				return err
			}
		}
	}
	return fsys.Delete(p)
}

func runCp(args []string, fsys vfs.FileSystem) Result {
	recursive := false
	if len(args) > 0 && args[0] == "-r" {
		recursive = true
		args = args[1:]
	}
	if len(args) != 2 {
		return fail("cp: usage: cp [-r] <src> <dst>")
	}
	src, dst := args[0], args[1]

	if !fsys.Exists(src) {
		return fail("cp: %s: no such file or directory", pathutil.Resolve(fsys.Cwd(), src))
	}
	if fsys.IsDir(src) && !recursive {
		return fail("cp: %s: is a directory (use -r)", pathutil.Resolve(fsys.Cwd(), src))
	}
	target := destPath(fsys, src, dst)
	if copiesIntoItself(fsys, src, target) {
		return fail("cp: cannot copy %s into itself", pathutil.Resolve(fsys.Cwd(), src))
	}
	if err := copyTree(fsys, src, target); err != nil {
		return fail("cp: %v", err)
	}
	return Result{}
}

func runMv(args []string, fsys vfs.FileSystem) Result {
	if len(args) != 2 {
		return fail("mv: usage: mv <src> <dst>")
	}
	src, dst := args[0], args[1]

	if !fsys.Exists(src) {
		return fail("mv: %s: no such file or directory", pathutil.Resolve(fsys.Cwd(), src))
	}
	target := destPath(fsys, src, dst)
	if copiesIntoItself(fsys, src, target) {
		return fail("mv: cannot move %s into itself", pathutil.Resolve(fsys.Cwd(), src))
	}
	if err := copyTree(fsys, src, target); err != nil {
		return fail("mv: %v", err)
	}
	if err := deleteTree(fsys, src); err != nil {
		return fail("mv: %v", err)
	}
	return Result{}
}

func runRm(args []string, fsys vfs.FileSystem) Result {
	recursive := false
	if len(args) > 0 && args[0] == "-r" {
		recursive = true
		args = args[1:]
	}
	if len(args) == 0 {
		return fail("rm: missing operand")
	}

	for _, arg := range args {
		var err error
		if recursive {
			err = deleteTree(fsys, arg)
		} else {
			err = fsys.Delete(arg)
		}
		if err != nil {
			return fail("rm: %v", err)
		}
	}
	return Result{}
}

func runDf(args []string, fsys vfs.FileSystem) Result {
	router, isRouter := fsys.(*mount.Router)
	if !isRouter {
		return fail("df: no mount table")
	}

	var b strings.Builder
	for _, m := range router.Points() {
		typ := "vfs"
		if holder, hasBackend := m.Backend.(interface{ Backend() storage.Backend }); hasBackend {
			typ = holder.Backend().Type()
		}
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		fmt.Fprintf(&b, "%-16s %-10s %-4s %s\n", m.MountPath, typ, mode, m.DisplayName)
	}
	return ok(b.String())
}

// NewSyncCommand builds the sync builtin for a session: it flushes every
// mounted filesystem that keeps a write-behind queue. It is contextual
// because flushing suspends on backend I/O.
func NewSyncCommand(ctx context.Context, router *mount.Router) Contextual {
	return Contextual{
		CommandName: "sync",
		Run: func(args []string, sctx *Context) (proc.Process, error) {
			for _, m := range router.Points() {
				if f, ok := m.Backend.(Flusher); ok {
					f.Flush(ctx)
				}
			}
			return nil, nil
		},
	}
}
