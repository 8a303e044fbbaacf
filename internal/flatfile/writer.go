package flatfile

import (
	"bufio"
	"fmt"
	"os"

	"github.com/GriffinCanCode/hibp/internal/record"
)

const writerBufSize = 256 * 1024

// Writer appends fixed-size binary records to a database file. It is
// not safe for concurrent use; the download pipeline writes from a
// single goroutine.
type Writer[R any] struct {
	codec record.Codec[R]
	f     *os.File
	w     *bufio.Writer
	buf   []byte
	count int64
}

// Create opens path for writing, truncating any existing content.
func Create[R any](c record.Codec[R], path string) (*Writer[R], error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}
	return newWriter(c, f), nil
}

// Append opens path for appending. A trailing partial record left by
// an interrupted run is truncated away first. The returned count is
// the number of whole records already present.
func Append[R any](c record.Codec[R], path string) (*Writer[R], int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("open database: %w", err)
	}
	size, err := repairTail(f, int64(c.Size()))
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if _, err := f.Seek(size, 0); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("seek database: %w", err)
	}
	return newWriter(c, f), size / int64(c.Size()), nil
}

func newWriter[R any](c record.Codec[R], f *os.File) *Writer[R] {
	return &Writer[R]{
		codec: c,
		f:     f,
		w:     bufio.NewWriterSize(f, writerBufSize),
		buf:   make([]byte, c.Size()),
	}
}

// Add appends one record.
func (w *Writer[R]) Add(r R) error {
	w.codec.Encode(w.buf, r)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records appended through this writer.
func (w *Writer[R]) Count() int64 { return w.count }

// Flush forces buffered records to the file.
func (w *Writer[R]) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush database: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer[R]) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Truncate discards everything at and after record index n. The write
// position moves to the new end. Used when a resumed download re-fetches
// the last, possibly incomplete, range prefix.
func (w *Writer[R]) Truncate(n int64) error {
	if err := w.Flush(); err != nil {
		return err
	}
	off := n * int64(w.codec.Size())
	if err := w.f.Truncate(off); err != nil {
		return fmt.Errorf("truncate database: %w", err)
	}
	if _, err := w.f.Seek(off, 0); err != nil {
		return fmt.Errorf("seek database: %w", err)
	}
	return nil
}

// repairTail truncates f down to a whole number of records and returns
// the resulting size.
func repairTail(f *os.File, recordSize int64) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat database: %w", err)
	}
	size := fi.Size() - fi.Size()%recordSize
	if size != fi.Size() {
		if err := f.Truncate(size); err != nil {
			return 0, fmt.Errorf("repair database tail: %w", err)
		}
	}
	return size, nil
}
