// Package fsutil holds file helpers shared by extraction and export.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicFile is a temp file that replaces its target on Commit. Until then the
// target is untouched; Abort (or a failed Commit) removes the temp file.
type AtomicFile struct {
	*os.File
	target string
	done   bool
}

// CreateAtomic creates a temp file next to target, creating parent
// directories as needed.
func CreateAtomic(target string, perm os.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if err := f.Chmod(perm); err != nil && !errors.Is(err, errors.ErrUnsupported) {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	return &AtomicFile{File: f, target: target}, nil
}

// Target is the final path.
func (a *AtomicFile) Target() string { return a.target }

// Commit flushes and closes the temp file and renames it over the target.
func (a *AtomicFile) Commit() error {
	if a.done {
		return os.ErrClosed
	}
	a.done = true
	tmp := a.File.Name()
	if err := a.File.Sync(); err != nil {
		_ = a.File.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := a.File.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, a.target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename to %s: %w", a.target, err)
	}
	return nil
}

// Abort discards the temp file. It is a no-op after Commit.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	_ = a.File.Close()
	_ = os.Remove(a.File.Name())
}

// SafeJoin joins a slash separated relative path onto root and fails when the
// result would land outside root.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%q is not a relative path", rel)
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%q escapes %s", rel, root)
	}
	return filepath.Join(root, local), nil
}
