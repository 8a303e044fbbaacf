package download

import (
	"fmt"
	"io"
	"time"
)

// progress tracks units and bytes written and renders an in-place
// status line. Touched only by the coordinating goroutine, so the
// counters need no locking.
type progress struct {
	out     io.Writer
	enabled bool
	start   time.Time
	total   int64 // ranges this run will fetch
	files   int64
	bytes   int64
}

func (p *progress) add(payloadBytes int) {
	p.files++
	p.bytes += int64(payloadBytes)
	p.render()
}

func (p *progress) render() {
	if !p.enabled {
		return
	}
	elapsed := time.Since(p.start)
	secs := elapsed.Seconds()
	var rate float64
	if secs > 0 {
		rate = float64(p.bytes) / (1 << 20) / secs
	}
	var pct float64
	if p.total > 0 {
		pct = 100 * float64(p.files) / float64(p.total)
	}
	fmt.Fprintf(p.out, "Elapsed: %s  Progress: %d / %d files  %.1fMB/s  %5.1f%%\r",
		formatElapsed(elapsed), p.files, p.total, rate, pct)
}

// finish terminates the status line so the next log line starts clean.
func (p *progress) finish() {
	if p.enabled {
		fmt.Fprintln(p.out)
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
