package pathutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"/a/b/c", "/a/b/c"},
		{"/a/b/c/", "/a/b/c"},
		{"a/b", "/a/b"},
		{"/a/./b", "/a/b"},
		{"/a/../b", "/b"},
		{"/../..", "/"},
		{"/a/b/../../c", "/c"},
		{"\\a\\b", "/a/b"},
		{"/a//b///c", "/a/b/c"},
		{".", "/"},
		{"..", "/"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	paths := []string{"/", "/a", "/a/b/c", "/with.ext/x", "/a b/c"}
	for _, p := range paths {
		once := Normalize(p)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", p, once, twice)
		}
	}
}

func TestJoin(t *testing.T) {
	cases := []struct {
		segs []string
		want string
	}{
		{[]string{"/a", "b", "c"}, "/a/b/c"},
		{[]string{"/a", "/b", "c"}, "/b/c"}, // later absolute segment resets
		{[]string{"a", "b"}, "/a/b"},
		{[]string{"/a/b", ".."}, "/a"},
		{[]string{}, "/"},
		{[]string{"/a", "", "b"}, "/a/b"},
	}
	for _, c := range cases {
		if got := Join(c.segs...); got != c.want {
			t.Errorf("Join(%v) = %q, want %q", c.segs, got, c.want)
		}
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		base, p, want string
	}{
		{"/home", "docs", "/home/docs"},
		{"/home", "/etc", "/etc"},
		{"/home/user", "../other", "/home/other"},
		{"/", "a", "/a"},
		{"/a/b", ".", "/a/b"},
	}
	for _, c := range cases {
		got := Resolve(c.base, c.p)
		if got != c.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", c.base, c.p, got, c.want)
		}
		if !IsAbs(got) {
			t.Errorf("Resolve(%q, %q) = %q is not absolute", c.base, c.p, got)
		}
	}
}

func TestParentBasename(t *testing.T) {
	cases := []struct {
		p, parent, base string
	}{
		{"/", "/", ""},
		{"/a", "/", "a"},
		{"/a/b", "/a", "b"},
		{"/a/b/c.txt", "/a/b", "c.txt"},
	}
	for _, c := range cases {
		if got := Parent(c.p); got != c.parent {
			t.Errorf("Parent(%q) = %q, want %q", c.p, got, c.parent)
		}
		if got := Basename(c.p); got != c.base {
			t.Errorf("Basename(%q) = %q, want %q", c.p, got, c.base)
		}
	}
}

func TestExt(t *testing.T) {
	cases := []struct{ p, want string }{
		{"/a/b.txt", ".txt"},
		{"/a/b.PNG", ".png"},
		{"/a/b", ""},
		{"/a/.hidden", ""},
		{"/a/archive.tar.gz", ".gz"},
	}
	for _, c := range cases {
		if got := Ext(c.p); got != c.want {
			t.Errorf("Ext(%q) = %q, want %q", c.p, got, c.want)
		}
	}
}
