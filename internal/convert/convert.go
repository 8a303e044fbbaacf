// Package convert moves corpora between the text dump form and the
// sorted binary database form.
package convert

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// Stats counts what an import consumed and what it kept. The lenient
// counters stay zero on a strict import, which fails on the first bad
// line instead.
type Stats struct {
	Files      int
	Lines      int64
	Records    int64 // records written, including BadCounts ones
	Malformed  int64 // lines dropped for an unparseable digest
	BadCounts  int64 // records kept with count -1 after a bad count field
	OutOfOrder int64 // lines dropped for breaking the sort order
}

// Importer streams text dump lines into a database writer, enforcing
// the strictly increasing digest order binary search depends on. The
// order carries across files, so inputs must arrive in corpus order.
type Importer[R any] struct {
	codec   record.Codec[R]
	w       *flatfile.Writer[R]
	lenient bool

	prev     R
	havePrev bool
	stats    Stats
}

func NewImporter[R any](c record.Codec[R], w *flatfile.Writer[R], lenient bool) *Importer[R] {
	return &Importer[R]{codec: c, w: w, lenient: lenient}
}

// File imports one text dump. Gzip inputs are detected by content, not
// by file name.
func (im *Importer[R]) File(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("sniff %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if mtype.Is("application/gzip") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gunzip %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	im.stats.Files++
	return im.lines(path, r)
}

func (im *Importer[R]) lines(path string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		im.stats.Lines++
		line := sc.Bytes()
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if err := im.line(line); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (im *Importer[R]) line(line []byte) error {
	rec, err := im.codec.Parse(line)
	switch {
	case err == nil:
	case im.lenient && errors.Is(err, record.ErrMalformedCount):
		// The digest part parsed; keep it with the unknown count.
		im.stats.BadCounts++
	case im.lenient:
		im.stats.Malformed++
		return nil
	default:
		return err
	}

	if im.havePrev && im.codec.Compare(im.prev, rec) >= 0 {
		if im.lenient {
			im.stats.OutOfOrder++
			return nil
		}
		return fmt.Errorf("%q out of order", line)
	}
	if err := im.w.Add(rec); err != nil {
		return err
	}
	im.prev, im.havePrev = rec, true
	im.stats.Records++
	return nil
}

// Stats returns the counters accumulated so far.
func (im *Importer[R]) Stats() Stats { return im.stats }

// Import runs every input through one importer in the given order.
func Import[R any](c record.Codec[R], inputs []string, w *flatfile.Writer[R], lenient bool) (Stats, error) {
	im := NewImporter(c, w, lenient)
	for _, p := range inputs {
		if err := im.File(p); err != nil {
			return im.Stats(), err
		}
	}
	return im.Stats(), nil
}

// Export streams a binary database back out as text dump lines and
// returns how many records it wrote.
func Export[R any](c record.Codec[R], db *flatfile.DB[R], w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 256*1024)
	var buf []byte
	for i := int64(0); i < db.Len(); i++ {
		buf = c.AppendText(buf[:0], db.At(i))
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return i, err
		}
	}
	return db.Len(), bw.Flush()
}
