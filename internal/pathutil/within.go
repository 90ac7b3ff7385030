// Package pathutil confines user-supplied paths to a set of directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutside is returned when a path escapes every allowed directory.
var ErrOutside = errors.New("path is outside the allowed directories")

// Redact shortens path to .../<parent>/<base> for error messages.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	path = filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(path))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(path)
	}
	return ".../" + parent + "/" + filepath.Base(path)
}

// Within checks that path lies in one of dirs after cleaning and resolving
// symlinks. The path itself need not exist.
func Within(path string, dirs []string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	if strings.ContainsRune(path, 0) {
		return errors.New("path contains a null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", Redact(path), err)
	}
	resolved, err := evalExisting(abs)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", Redact(path), err)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		base, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if base, err = evalExisting(base); err != nil {
			continue
		}
		if contains(base, resolved) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", Redact(abs), ErrOutside)
}

// evalExisting resolves symlinks on the longest existing prefix of path and
// appends the rest unchanged.
func evalExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	parent := filepath.Dir(path)
	if parent == path {
		return "", err
	}
	head, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(head, filepath.Base(path)), nil
}

// contains reports whether path is base or below it.
func contains(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
