// Package safepath confines client-supplied paths to a root directory.
package safepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned when a path would escape its root.
var ErrInvalidPath = errors.New("invalid path")

// Resolve joins userRelative onto root, normalizes the result and returns it
// only if it is root itself or lies below root. The sibling check uses
// root+separator so "/data/up" never admits "/data/upload-evil".
func Resolve(root, userRelative string) (string, error) {
	root = filepath.Clean(root)
	candidate := filepath.Join(root, userRelative)

	if candidate == root {
		return candidate, nil
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if !strings.HasPrefix(candidate, prefix) {
		return "", ErrInvalidPath
	}

	return candidate, nil
}

// FileName reduces a client-supplied filename to its final element and
// rejects names that cannot address a regular file.
func FileName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))

	switch base {
	case "", ".", "..", string(os.PathSeparator):
		return "", ErrInvalidPath
	}
	return base, nil
}

// Join resolves folder under root and then places the sanitized name in it.
func Join(root, folder, name string) (string, error) {
	dir, err := Resolve(root, folder)
	if err != nil {
		return "", err
	}
	base, err := FileName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, base), nil
}
