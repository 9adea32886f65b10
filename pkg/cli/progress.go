package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressReporter follows a batch of prompts. Implementations are safe
// for concurrent use by the workers sending the prompts.
type ProgressReporter interface {
	// Start resets the reporter for total prompts.
	Start(total int)
	// Done records one finished prompt.
	Done(ok bool)
	// Finish ends the report.
	Finish()
}

// Bar draws a single-line progress bar with the failure count and the
// prompt rate. It redraws at most once per interval.
type Bar struct {
	mu       sync.Mutex
	writer   io.Writer
	width    int
	interval time.Duration

	total    int
	ok       int
	failed   int
	started  time.Time
	lastDraw time.Time
}

// NewBar creates a bar writing to w. A nil w discards the output.
func NewBar(w io.Writer) *Bar {
	if w == nil {
		w = io.Discard
	}
	return &Bar{writer: w, width: 30, interval: 100 * time.Millisecond}
}

// Start implements ProgressReporter.
func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total, b.ok, b.failed = total, 0, 0
	b.started = time.Now()
	b.draw()
}

// Done implements ProgressReporter.
func (b *Bar) Done(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.ok++
	} else {
		b.failed++
	}
	if b.ok+b.failed == b.total || time.Since(b.lastDraw) >= b.interval {
		b.draw()
	}
}

// Finish implements ProgressReporter.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.total == 0 {
		return
	}
	b.draw()
	fmt.Fprintln(b.writer)
}

// Counts returns the successful and failed prompts so far.
func (b *Bar) Counts() (ok, failed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ok, b.failed
}

func (b *Bar) draw() {
	if b.total == 0 {
		return
	}
	b.lastDraw = time.Now()

	done := min(b.ok+b.failed, b.total)
	filled := b.width * done / b.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", b.width-filled)

	var rate float64
	if elapsed := time.Since(b.started).Seconds(); elapsed > 0 {
		rate = float64(b.ok+b.failed) / elapsed
	}

	fmt.Fprintf(b.writer, "\r[%s] %d/%d  failed %d  %.1f prompts/s",
		bar, done, b.total, b.failed, rate)
}
