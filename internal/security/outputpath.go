// Package security validates user-supplied file paths before the service
// writes to them.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowedDirs is returned when a path resolves outside every
// allowed directory.
var ErrOutsideAllowedDirs = errors.New("path outside allowed directories")

// ValidateOutputPath checks that path, after resolving symlinks on its
// deepest existing ancestor, lies within one of dirs. With no dirs the
// working directory and the temp directory are allowed.
func ValidateOutputPath(path string, dirs ...string) error {
	if path == "" {
		return errors.New("empty output path")
	}
	if len(dirs) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		dirs = []string{cwd, os.TempDir()}
	}

	target, err := canonical(path)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		root, err := canonical(dir)
		if err != nil {
			continue
		}
		if within(root, target) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not in %v", ErrOutsideAllowedDirs, path, dirs)
}

// canonical returns the absolute form of path with symlinks resolved on the
// longest prefix that exists, so a not-yet-created file under a symlinked
// directory resolves to where it would really be written.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	var rest []string
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
	}
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
