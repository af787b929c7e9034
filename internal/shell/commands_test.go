package shell

import (
	"context"
	"strings"
	"testing"

	"github.com/jcollard/webshell/internal/cachefs"
	"github.com/jcollard/webshell/internal/mount"
	"github.com/jcollard/webshell/internal/storage/memory"
	"github.com/jcollard/webshell/internal/vfs"
)

func newTestFS(t *testing.T) *cachefs.FileSystem {
	t.Helper()
	fs := cachefs.New(memory.New())
	mustWrite := func(p, content string) {
		if err := fs.Write(p, content); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}
	if err := fs.Mkdir("/docs"); err != nil {
		t.Fatal(err)
	}
	mustWrite("/docs/readme.md", "hello\n")
	mustWrite("/notes.txt", "note one\n")
	return fs
}

func run(t *testing.T, fsys vfs.FileSystem, line string) Result {
	t.Helper()
	name, args := ParseLine(line)
	cmd := map[string]func([]string, vfs.FileSystem) Result{
		"pwd": runPwd, "cd": runCd, "ls": runLs, "cat": runCat,
		"echo": runEcho, "mkdir": runMkdir, "touch": runTouch,
		"cp": runCp, "mv": runMv, "rm": runRm, "df": runDf,
	}[name]
	if cmd == nil {
		t.Fatalf("no such test command %q", name)
	}
	return cmd(args, fsys)
}

func TestPwdAndCd(t *testing.T) {
	fs := newTestFS(t)

	if res := run(t, fs, "pwd"); res.Stdout != "/\n" {
		t.Errorf("pwd = %q", res.Stdout)
	}
	if res := run(t, fs, "cd docs"); res.ExitCode != 0 {
		t.Fatalf("cd docs failed: %s", res.Stderr)
	}
	if res := run(t, fs, "pwd"); res.Stdout != "/docs\n" {
		t.Errorf("pwd after cd = %q", res.Stdout)
	}
	if res := run(t, fs, "cd /missing"); res.ExitCode == 0 {
		t.Error("cd into a missing directory succeeded")
	}
	// cd with no operand returns to the root.
	if res := run(t, fs, "cd"); res.ExitCode != 0 {
		t.Fatalf("bare cd failed: %s", res.Stderr)
	}
	if fs.Cwd() != "/" {
		t.Errorf("cwd after bare cd = %q", fs.Cwd())
	}
}

func TestLsMarksDirectories(t *testing.T) {
	fs := newTestFS(t)
	res := run(t, fs, "ls /")
	if res.ExitCode != 0 {
		t.Fatalf("ls failed: %s", res.Stderr)
	}
	want := "docs/\nnotes.txt\n"
	if res.Stdout != want {
		t.Errorf("ls = %q, want %q", res.Stdout, want)
	}
}

func TestCatConcatenates(t *testing.T) {
	fs := newTestFS(t)
	res := run(t, fs, "cat /notes.txt /docs/readme.md")
	if res.ExitCode != 0 {
		t.Fatalf("cat failed: %s", res.Stderr)
	}
	if res.Stdout != "note one\nhello\n" {
		t.Errorf("cat = %q", res.Stdout)
	}

	res = run(t, fs, "cat /missing.txt")
	if res.ExitCode == 0 || !strings.Contains(res.Stderr, "/missing.txt") {
		t.Errorf("cat of a missing file: exit=%d stderr=%q", res.ExitCode, res.Stderr)
	}
}

func TestEcho(t *testing.T) {
	fs := newTestFS(t)
	res := run(t, fs, `echo hello "big world"`)
	if res.Stdout != "hello big world\n" {
		t.Errorf("echo = %q", res.Stdout)
	}
}

func TestMkdirAndTouch(t *testing.T) {
	fs := newTestFS(t)

	if res := run(t, fs, "mkdir /a /a/b"); res.ExitCode != 0 {
		t.Fatalf("mkdir failed: %s", res.Stderr)
	}
	if !fs.IsDir("/a/b") {
		t.Error("/a/b not created")
	}

	if res := run(t, fs, "touch /a/b/new.txt"); res.ExitCode != 0 {
		t.Fatalf("touch failed: %s", res.Stderr)
	}
	if !fs.IsFile("/a/b/new.txt") {
		t.Error("/a/b/new.txt not created")
	}

	// touch on an existing file leaves the content alone.
	if res := run(t, fs, "touch /notes.txt"); res.ExitCode != 0 {
		t.Fatalf("touch existing failed: %s", res.Stderr)
	}
	content, err := fs.Read("/notes.txt")
	if err != nil || content != "note one\n" {
		t.Errorf("touch truncated an existing file: %q, %v", content, err)
	}
}

func TestCpFileAndIntoDirectory(t *testing.T) {
	fs := newTestFS(t)

	if res := run(t, fs, "cp /notes.txt /copy.txt"); res.ExitCode != 0 {
		t.Fatalf("cp failed: %s", res.Stderr)
	}
	if content, _ := fs.Read("/copy.txt"); content != "note one\n" {
		t.Errorf("copy content = %q", content)
	}

	// A directory destination receives the source under its own name.
	if res := run(t, fs, "cp /notes.txt /docs"); res.ExitCode != 0 {
		t.Fatalf("cp into dir failed: %s", res.Stderr)
	}
	if content, _ := fs.Read("/docs/notes.txt"); content != "note one\n" {
		t.Errorf("copy into dir content = %q", content)
	}

	if res := run(t, fs, "cp /docs /backup"); res.ExitCode == 0 {
		t.Error("cp of a directory without -r succeeded")
	}
	if res := run(t, fs, "cp -r /docs /backup"); res.ExitCode != 0 {
		t.Fatalf("cp -r failed: %s", res.Stderr)
	}
	if content, _ := fs.Read("/backup/readme.md"); content != "hello\n" {
		t.Errorf("recursive copy content = %q", content)
	}
}

func TestCpRejectsCopyIntoItself(t *testing.T) {
	fs := newTestFS(t)

	// Both a destination nested under the source and a directory
	// destination that maps the source into itself must fail instead of
	// recursing forever.
	for _, line := range []string{
		"cp -r /docs /docs/copy",
		"cp -r /docs /docs",
	} {
		res := run(t, fs, line)
		if res.ExitCode == 0 {
			t.Errorf("%q succeeded", line)
		}
		if !strings.Contains(res.Stderr, "into itself") {
			t.Errorf("%q stderr = %q", line, res.Stderr)
		}
	}

	// The source tree is untouched.
	entries, err := fs.List("/docs")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "readme.md" {
		t.Errorf("/docs after rejected copy = %+v", entries)
	}

	res := run(t, fs, "mv /docs /docs/copy")
	if res.ExitCode == 0 || !strings.Contains(res.Stderr, "into itself") {
		t.Errorf("mv into own subtree: exit=%d stderr=%q", res.ExitCode, res.Stderr)
	}
	if !fs.IsDir("/docs") {
		t.Error("source removed by a rejected move")
	}
}

func TestMvMovesAndRemovesSource(t *testing.T) {
	fs := newTestFS(t)

	if res := run(t, fs, "mv /notes.txt /docs/renamed.txt"); res.ExitCode != 0 {
		t.Fatalf("mv failed: %s", res.Stderr)
	}
	if fs.Exists("/notes.txt") {
		t.Error("source survived the move")
	}
	if content, _ := fs.Read("/docs/renamed.txt"); content != "note one\n" {
		t.Errorf("moved content = %q", content)
	}
}

func TestRm(t *testing.T) {
	fs := newTestFS(t)

	if res := run(t, fs, "rm /docs"); res.ExitCode == 0 {
		t.Error("rm of a non-empty directory without -r succeeded")
	}
	if res := run(t, fs, "rm -r /docs"); res.ExitCode != 0 {
		t.Fatalf("rm -r failed: %s", res.Stderr)
	}
	if fs.Exists("/docs") {
		t.Error("/docs survived rm -r")
	}
	if res := run(t, fs, "rm /notes.txt"); res.ExitCode != 0 {
		t.Fatalf("rm failed: %s", res.Stderr)
	}
}

func TestDfListsMounts(t *testing.T) {
	router := mount.NewRouter()
	if err := router.Mount(mount.Point{MountPath: "/project", Backend: cachefs.New(memory.New())}); err != nil {
		t.Fatal(err)
	}
	if err := router.Mount(mount.Point{MountPath: "/ref", Backend: cachefs.New(memory.New()), DisplayName: "reference", ReadOnly: true}); err != nil {
		t.Fatal(err)
	}

	res := runDf(nil, router)
	if res.ExitCode != 0 {
		t.Fatalf("df failed: %s", res.Stderr)
	}
	for _, want := range []string{"/project", "memory", "rw", "/ref", "ro", "reference"} {
		if !strings.Contains(res.Stdout, want) {
			t.Errorf("df output missing %q:\n%s", want, res.Stdout)
		}
	}

	if res := runDf(nil, cachefs.New(memory.New())); res.ExitCode == 0 {
		t.Error("df without a mount router succeeded")
	}
}

func TestSyncFlushesMountedFilesystems(t *testing.T) {
	backend := memory.New()
	fs := cachefs.New(backend)
	router := mount.NewRouter()
	if err := router.Mount(mount.Point{MountPath: "/project", Backend: fs}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Write("/pending.txt", "queued"); err != nil {
		t.Fatal(err)
	}
	if fs.Pending() == 0 {
		t.Fatal("write did not queue")
	}

	cmd := NewSyncCommand(context.Background(), router)
	var s sink
	p, err := cmd.Run(nil, s.ctx(router))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if p != nil {
		t.Error("sync handed back a process")
	}
	if fs.Pending() != 0 {
		t.Errorf("queue depth after sync = %d", fs.Pending())
	}
}
