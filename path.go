// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"fmt"
	"strings"
)

// Path is an immutable, normalized, slash separated location inside an
// archive. The zero value is the archive root.
//
// A Path never contains empty, "." or ".." segments. Paths compare and
// order segment-wise.
type Path struct {
	segments []string
}

// RootPath is the root of every archive.
var RootPath = Path{}

// ParsePath normalizes s into a [Path]. Leading, trailing and repeated
// slashes as well as "." segments are dropped. A ".." segment or a NUL byte
// results in an error wrapping [ErrInvalidPath].
func ParsePath(s string) (Path, error) {
	if strings.ContainsRune(s, 0) {
		return Path{}, fmt.Errorf("%w: %q contains NUL byte", ErrInvalidPath, s)
	}

	parts := strings.Split(s, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return Path{}, fmt.Errorf("%w: %q contains parent reference", ErrInvalidPath, s)
		}
		segments = append(segments, part)
	}

	if len(segments) == 0 {
		return Path{}, nil
	}
	return Path{segments: segments}, nil
}

// MustPath is like [ParsePath] but panics if s cannot be parsed. It is
// intended for tests and package level variables.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Join composes base and rel by concatenating their segments.
func Join(base Path, rel Path) Path {
	if base.IsRoot() {
		return rel
	}
	if rel.IsRoot() {
		return base
	}
	segments := make([]string, 0, len(base.segments)+len(rel.segments))
	segments = append(segments, base.segments...)
	segments = append(segments, rel.segments...)
	return Path{segments: segments}
}

// IsRoot returns true for the archive root.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p.segments)
}

// Name returns the last segment, or "" for the root.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Segments returns a copy of the segments of p.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Parent returns the parent of p. The second return value is false for
// the root, which has no parent.
func (p Path) Parent() (Path, bool) {
	switch len(p.segments) {
	case 0:
		return Path{}, false
	case 1:
		return Path{}, true
	}
	return Path{segments: p.segments[:len(p.segments)-1]}, true
}

// Ancestors returns all proper ancestors of p, excluding the root, ordered
// from the outermost to the direct parent.
func (p Path) Ancestors() []Path {
	if len(p.segments) < 2 {
		return nil
	}
	ancestors := make([]Path, 0, len(p.segments)-1)
	for i := 1; i < len(p.segments); i++ {
		ancestors = append(ancestors, Path{segments: p.segments[:i]})
	}
	return ancestors
}

// HasPrefix reports whether prefix is p itself or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, s := range prefix.segments {
		if p.segments[i] != s {
			return false
		}
	}
	return true
}

// Equal reports whether p and other address the same location.
func (p Path) Equal(other Path) bool {
	return Compare(p, other) == 0
}

// Compare orders two paths segment-wise. An ancestor sorts before its
// descendants.
func Compare(a, b Path) int {
	n := len(a.segments)
	if len(b.segments) < n {
		n = len(b.segments)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(a.segments[i], b.segments[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.segments) < len(b.segments):
		return -1
	case len(a.segments) > len(b.segments):
		return 1
	}
	return 0
}

// String renders p the way [io/fs] names files: "." for the root and
// "a/b" otherwise.
func (p Path) String() string {
	if p.IsRoot() {
		return "."
	}
	return strings.Join(p.segments, "/")
}
