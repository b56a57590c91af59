package cache

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Replaced in tests to observe or break the write sequence.
var (
	createTemp = os.CreateTemp
	rename     = os.Rename
)

// writeFileAtomic replaces path with data so that readers only ever see the
// old or the new content: the bytes go to a temporary file in the same
// directory, which is synced, closed and renamed over path before the
// directory itself is synced.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := createTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	syncDir(dir)
	return nil
}

// syncDir flushes the rename to disk. Directory fsync is unsupported on
// some platforms; the rename has already happened, so that is not an error.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}
