// Package tree implements the virtual file tree that every tool invocation
// consumes and produces.
//
// A Tree maps path segments to entries; an entry is either a File holding
// content or a nested Tree. Trees are treated as values: operations that
// change a tree return a new one and leave their input untouched.
package tree

import (
	"bytes"
	"sort"
	"strings"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// Entry is a File or a Tree.
type Entry interface {
	entry()
}

// File is the content of a single file.
type File []byte

// Tree is a directory of named entries.
type Tree map[string]Entry

func (File) entry() {}
func (Tree) entry() {}

// String returns the file content as a string.
func (f File) String() string {
	return string(f)
}

// FileString builds a File from text.
func FileString(s string) File {
	return File(s)
}

// Get returns the content stored at path.
//
// Each segment but the last must name a directory and the last must name a
// file; anything else yields a TREE-001 error. An empty path yields TREE-002.
func Get(t Tree, path []string) ([]byte, error) {
	if len(path) == 0 {
		return nil, errors.NewPathInvalidError("failed to get file with no path")
	}

	dir := t
	for i, name := range path {
		entry, ok := dir[name]
		if !ok {
			return nil, errors.NewPathNotFoundError(path, "no such entry "+name)
		}
		if i == len(path)-1 {
			f, ok := entry.(File)
			if !ok {
				return nil, errors.NewPathNotFoundError(path, "expected file but got directory")
			}
			return f, nil
		}
		sub, ok := entry.(Tree)
		if !ok {
			return nil, errors.NewPathNotFoundError(path, "expected directory but got file at "+name)
		}
		dir = sub
	}
	return nil, errors.NewPathNotFoundError(path, "unreachable")
}

// GetString is Get returning the content as a string.
func GetString(t Tree, path []string) (string, error) {
	content, err := Get(t, path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Split turns a slash separated path into segments, ignoring empty ones.
func Split(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			segments = append(segments, s)
		}
	}
	return segments
}

// Clone returns a deep copy of t.
func Clone(t Tree) Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for name, entry := range t {
		switch e := entry.(type) {
		case File:
			out[name] = append(File(nil), e...)
		case Tree:
			out[name] = Clone(e)
		}
	}
	return out
}

// Set returns a copy of t with content stored at path, creating
// intermediate directories as needed. A file in the way of a directory is
// replaced.
func Set(t Tree, path []string, content []byte) (Tree, error) {
	if len(path) == 0 {
		return nil, errors.NewPathInvalidError("failed to set file with no path")
	}
	out := shallowCopy(t)
	if len(path) == 1 {
		out[path[0]] = append(File(nil), content...)
		return out, nil
	}
	sub, _ := out[path[0]].(Tree)
	next, err := Set(sub, path[1:], content)
	if err != nil {
		return nil, err
	}
	out[path[0]] = next
	return out, nil
}

// Merge returns a new tree holding base overlaid with overlay. Directories
// present in both are merged recursively; for any other collision the
// overlay entry wins.
func Merge(base, overlay Tree) Tree {
	out := shallowCopy(base)
	for name, entry := range overlay {
		if sub, ok := entry.(Tree); ok {
			if existing, ok := out[name].(Tree); ok {
				out[name] = Merge(existing, sub)
				continue
			}
		}
		out[name] = entry
	}
	return out
}

// WalkFunc is called for each file reached by Walk.
type WalkFunc func(path []string, content []byte) error

// Walk visits every file in t depth first, in lexical order of names.
// Returning an error from fn stops the walk.
func Walk(t Tree, fn WalkFunc) error {
	return walk(t, nil, fn)
}

func walk(t Tree, prefix []string, fn WalkFunc) error {
	for _, name := range Names(t) {
		path := append(append([]string(nil), prefix...), name)
		switch e := t[name].(type) {
		case File:
			if err := fn(path, e); err != nil {
				return err
			}
		case Tree:
			if err := walk(e, path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names returns the entry names of t in lexical order.
func Names(t Tree) []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether a and b hold the same files with the same content.
func Equal(a, b Tree) bool {
	if len(a) != len(b) {
		return false
	}
	for name, ea := range a {
		eb, ok := b[name]
		if !ok {
			return false
		}
		switch va := ea.(type) {
		case File:
			vb, ok := eb.(File)
			if !ok || !bytes.Equal(va, vb) {
				return false
			}
		case Tree:
			vb, ok := eb.(Tree)
			if !ok || !Equal(va, vb) {
				return false
			}
		}
	}
	return true
}

// Count returns the number of files in t.
func Count(t Tree) int {
	n := 0
	_ = Walk(t, func([]string, []byte) error {
		n++
		return nil
	})
	return n
}

func shallowCopy(t Tree) Tree {
	out := make(Tree, len(t)+1)
	for name, entry := range t {
		out[name] = entry
	}
	return out
}
