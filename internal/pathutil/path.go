// Package pathutil implements path normalization for the virtual filesystem.
// All paths in the shell core are absolute, slash-separated and normalized;
// the string itself is the sole identity of a node across the stack.
package pathutil

import "strings"

// Normalize converts p to canonical form: separators unified to "/", empty
// and "." segments dropped, ".." popping one level but never past root.
// The result always has a leading "/" and no trailing slash except for root
// itself. Normalize is idempotent.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")

	var stack []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}

	if len(stack) == 0 {
		return "/"
	}
	return "/" + strings.Join(stack, "/")
}

// Join concatenates segments into one path. A later absolute segment resets
// the accumulator, mirroring how a shell treats "cd /x" inside a longer
// expression. The result is normalized.
func Join(segments ...string) string {
	var acc string
	for _, seg := range segments {
		if strings.HasPrefix(seg, "/") {
			acc = seg
			continue
		}
		if acc == "" {
			acc = seg
		} else {
			acc = acc + "/" + seg
		}
	}
	return Normalize(acc)
}

// Resolve interprets p relative to base. Absolute paths ignore base.
func Resolve(base, p string) string {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return Normalize(p)
	}
	return Join(base, p)
}

// Parent returns the directory containing p. The parent of root, or of a
// direct child of root, is root.
func Parent(p string) string {
	p = Normalize(p)
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// Basename returns the last path segment, or "" for root.
func Basename(p string) string {
	p = Normalize(p)
	if p == "/" {
		return ""
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// IsAbs reports whether p starts at root.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// Ext returns the lowercased extension of the final segment including the
// dot, or "" when there is none.
func Ext(p string) string {
	name := Basename(p)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return strings.ToLower(name[i:])
	}
	return ""
}
