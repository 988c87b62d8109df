package skillset

import (
	"os"
	"path/filepath"
	"strings"
)

// normalizePath makes path absolute and lexically resolves "." and ".."
// components without touching the filesystem.
func normalizePath(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		wd, err := os.Getwd()
		if err != nil {
			return "", ExecutionFailed("cannot get current directory: %v", err)
		}
		abs = filepath.Join(wd, abs)
	}
	return filepath.Clean(abs), nil
}

// canonicalizeAllowed resolves an allowed directory to its real path,
// skipping (not failing on) directories that don't exist on disk.
func canonicalizeAllowed(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		real, err := filepath.EvalSymlinks(d)
		if err != nil {
			continue
		}
		out = append(out, real)
	}
	return out
}

func withinAny(path string, dirs []string) bool {
	for _, d := range dirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// validateReadPath implements the two-pass sandbox check for read_file:
// 1. Lexically normalize the requested path; reject if it falls outside
//    every canonicalized allowed directory (catches ".." traversal even
//    against a path that doesn't exist yet).
// 2. Canonicalize the real path (resolving symlinks) and re-check. This
//    catches a symlink inside the sandbox that points outside it.
func validateReadPath(path string, allowedDirs []string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	canonicalAllowed := canonicalizeAllowed(allowedDirs)
	if !withinAny(normalized, canonicalAllowed) {
		return "", Forbidden("path %q is outside allowed directories", path)
	}

	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", ExecutionFailed("cannot resolve path %q: %v", path, err)
	}
	if !withinAny(canonical, canonicalAllowed) {
		return "", Forbidden("path %q resolves outside allowed directories", path)
	}
	return canonical, nil
}

// validateWritePath implements the two-pass sandbox check for write_file:
// normalize and check against allowed dirs, create parent directories,
// then canonicalize the parent (catching symlink-based escapes) and
// re-verify before returning the final path to write to.
func validateWritePath(path string, allowedDirs []string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	canonicalAllowed := canonicalizeAllowed(allowedDirs)
	if !withinAny(normalized, canonicalAllowed) {
		return "", Forbidden("path %q is outside allowed directories", path)
	}

	parent := filepath.Dir(normalized)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", ExecutionFailed("failed to create parent directories: %v", err)
	}

	canonicalParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return "", ExecutionFailed("cannot resolve parent directory: %v", err)
	}
	final := filepath.Join(canonicalParent, filepath.Base(normalized))

	if !withinAny(final, canonicalAllowed) {
		return "", Forbidden("path %q resolves outside allowed directories", path)
	}
	return final, nil
}
