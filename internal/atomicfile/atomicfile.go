// Package atomicfile replaces files so that readers observe either the old
// content or the new content, never a partial write.
package atomicfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteFunc creates path's directory if needed, streams write into a temp
// file beside path, fsyncs it, and renames it over path. On any failure the
// temp file is removed and path is left untouched.
func WriteFunc(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "atomicfile: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "atomicfile: create temp for %s", path)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return eris.Wrapf(err, "atomicfile: write %s", path)
	}
	if err = bw.Flush(); err != nil {
		return eris.Wrapf(err, "atomicfile: flush %s", path)
	}
	if err = tmp.Sync(); err != nil {
		return eris.Wrapf(err, "atomicfile: sync %s", path)
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "atomicfile: close %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "atomicfile: rename into %s", path)
	}
	return nil
}

// Write replaces path with data.
func Write(path string, data []byte) error {
	return WriteFunc(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
