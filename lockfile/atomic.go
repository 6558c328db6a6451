package lockfile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"
)

// WriteFile writes bytes to path via a sibling temp file plus rename,
// so a reader never observes a partially-written lockfile, guarded by
// an flock-based lock on a ".lock" sibling so two concurrent package
// managers don't interleave writes to the same file.
//
// This package performs no I/O of its own otherwise; callers may use
// this helper, or their own equivalent, to persist what
// ResolveWriteBytes returns.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	lock := flock.NewFlock(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "locking %s", path)
	}
	defer lock.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lockfile-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Wrap(err, "setting permissions")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "renaming into place")
	}
	return nil
}
