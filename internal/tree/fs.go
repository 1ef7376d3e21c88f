package tree

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// WriteDir materialises t under dir so that an external process can work
// on it. dir is created if missing.
func WriteDir(t Tree, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeTreeIO, "create "+dir, err)
	}
	return writeDir(t, dir)
}

func writeDir(t Tree, dir string) error {
	for name, entry := range t {
		if !validName(name) {
			return errors.New(errors.ErrCodeTreeIO, fmt.Sprintf("invalid entry name %q", name))
		}
		target := filepath.Join(dir, name)
		switch e := entry.(type) {
		case File:
			if err := os.WriteFile(target, e, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeTreeIO, "write "+target, err)
			}
		case Tree:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeTreeIO, "create "+target, err)
			}
			if err := writeDir(e, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadDir loads the regular files and directories under dir into a tree.
// Other file types (symlinks, sockets) are skipped.
func ReadDir(dir string) (Tree, error) {
	out := Tree{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		segments := Split(filepath.ToSlash(rel))
		switch {
		case d.IsDir():
			dirAt(out, segments)
		case d.Type().IsRegular():
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			dirAt(out, segments[:len(segments)-1])[segments[len(segments)-1]] = File(content)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTreeIO, "read "+dir, err)
	}
	return out, nil
}

// dirAt returns the directory of t at path, creating missing levels in
// place. Only used while t is private to ReadDir.
func dirAt(t Tree, path []string) Tree {
	for _, name := range path {
		sub, ok := t[name].(Tree)
		if !ok {
			sub = Tree{}
			t[name] = sub
		}
		t = sub
	}
	return t
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}
