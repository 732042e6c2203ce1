package mirror

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// atomicFile streams content into a temporary file next to path and
// renames it into place on Commit. The BLAKE2b-256 digest of everything
// written is available after Commit.
type atomicFile struct {
	path string
	tmp  *os.File
	w    io.Writer
	sum  hash.Hash
}

func createAtomic(path string) (*atomicFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		_ = tmp.Close()           //nolint:errcheck // already failing
		_ = os.Remove(tmp.Name()) //nolint:errcheck // already failing
		return nil, err
	}
	return &atomicFile{
		path: path,
		tmp:  tmp,
		w:    io.MultiWriter(tmp, h),
		sum:  h,
	}, nil
}

// Write implements io.Writer.
func (f *atomicFile) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// Commit closes the temporary file and renames it over path, replacing
// any existing file.
func (f *atomicFile) Commit() (string, error) {
	if err := f.tmp.Close(); err != nil {
		_ = os.Remove(f.tmp.Name()) //nolint:errcheck // already failing
		return "", err
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		_ = os.Remove(f.tmp.Name()) //nolint:errcheck // already failing
		return "", fmt.Errorf("rename into place: %w", err)
	}
	return hex.EncodeToString(f.sum.Sum(nil)), nil
}

// Abort discards the temporary file.
func (f *atomicFile) Abort() {
	_ = f.tmp.Close()           //nolint:errcheck // discarding
	_ = os.Remove(f.tmp.Name()) //nolint:errcheck // discarding
}

// writeFileAtomic writes data to path through a temporary file.
func writeFileAtomic(path string, data []byte) error {
	f, err := createAtomic(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return err
	}
	_, err = f.Commit()
	return err
}
