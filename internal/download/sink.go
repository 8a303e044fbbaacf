package download

import (
	"bufio"
	"fmt"
	"io"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// Sink receives one full digest line per corpus entry. The write stage
// picks lines apart from the wire payload; the sink decides what a
// line becomes. Selected once at startup, either text pass-through or
// binary records.
type Sink interface {
	WriteLine(line []byte) error
	Flush() error
	Close() error
}

// TextSink writes lines verbatim, newline-terminated. Used for plain
// text mirrors and for piping to other tools.
type TextSink struct {
	w *bufio.Writer
	c io.Closer
}

// NewTextSink wraps w. If w is also an io.Closer, Close closes it.
func NewTextSink(w io.Writer) *TextSink {
	s := &TextSink{w: bufio.NewWriterSize(w, 256*1024)}
	if c, ok := w.(io.Closer); ok {
		s.c = c
	}
	return s
}

func (s *TextSink) WriteLine(line []byte) error {
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *TextSink) Flush() error { return s.w.Flush() }

func (s *TextSink) Close() error {
	if err := s.w.Flush(); err != nil {
		if s.c != nil {
			s.c.Close()
		}
		return err
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// RecordSink parses each line and appends its fixed-size binary form
// to a database writer. Parsing is strict: a malformed line in the
// wire payload aborts the run rather than silently thinning the
// database.
type RecordSink[R any] struct {
	codec record.Codec[R]
	w     *flatfile.Writer[R]
}

func NewRecordSink[R any](c record.Codec[R], w *flatfile.Writer[R]) *RecordSink[R] {
	return &RecordSink[R]{codec: c, w: w}
}

func (s *RecordSink[R]) WriteLine(line []byte) error {
	r, err := s.codec.Parse(line)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	return s.w.Add(r)
}

func (s *RecordSink[R]) Flush() error { return s.w.Flush() }

func (s *RecordSink[R]) Close() error { return s.w.Close() }

// Records returns how many records reached the database.
func (s *RecordSink[R]) Records() int64 { return s.w.Count() }
