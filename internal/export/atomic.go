// Package export writes the artifacts of an extraction run: the XML rendering
// of the dataset, the re-encoded JPEG frames and the encapsulated document.
package export

import (
	"fmt"
	"io"
	"os"

	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
)

// partSuffix marks a file that is still being written.
const partSuffix = ".part"

// writeAtomic creates path+".part", hands it to write and renames it to path
// once write and Close succeed. On any failure the partial file is removed.
// File system failures are returned as IOFailure; errors returned by write
// are passed through untouched so callers can classify them.
func writeAtomic(stage, path string, write func(w io.Writer) error) (err error) {
	tmp := path + partSuffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return dcm.NewError(dcm.KindIOFailure, stage, path, fmt.Errorf("create file: %w", err))
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if werr := write(f); werr != nil {
		_ = f.Close()
		return werr
	}
	if cerr := f.Close(); cerr != nil {
		return dcm.NewError(dcm.KindIOFailure, stage, path, fmt.Errorf("close file: %w", cerr))
	}
	if rerr := os.Rename(tmp, path); rerr != nil {
		return dcm.NewError(dcm.KindIOFailure, stage, path, fmt.Errorf("rename file: %w", rerr))
	}
	return nil
}

// recordingWriter remembers the first error returned by the underlying writer,
// so an encoder failure can be told apart from a file system failure.
type recordingWriter struct {
	w   io.Writer
	err error
}

func (r *recordingWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}
