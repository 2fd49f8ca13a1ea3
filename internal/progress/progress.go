// Package progress reports batch progress. Sinks are purely observational:
// nothing they do feeds back into scheduling.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Sink receives progress events from a running batch. Implementations must
// be safe for concurrent use.
type Sink interface {
	// Interrupt prints a line above the progress display.
	Interrupt(line string)
	// Tick records one finished input.
	Tick(label string)
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Interrupt(string) {}
func (discard) Tick(string)      {}

// New returns a Bar when w is a terminal and plain is false, and a Line
// sink otherwise.
func New(w io.Writer, title string, total int, plain bool) Sink {
	if !plain && isTerminal(w) {
		return NewBar(w, title, total)
	}
	return NewLine(w, title, total)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Line writes one line per event, for logs and non-interactive output.
type Line struct {
	mu      sync.Mutex
	w       io.Writer
	title   string
	total   int
	current int
}

// NewLine creates a Line sink.
func NewLine(w io.Writer, title string, total int) *Line {
	return &Line{w: w, title: title, total: total}
}

// Interrupt implements Sink.
func (l *Line) Interrupt(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, line)
}

// Tick implements Sink.
func (l *Line) Tick(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current++
	fmt.Fprintf(l.w, "%s %d/%d(%s) %s\n", l.title, l.current, l.total, percent(l.current, l.total), label)
}

func percent(current, total int) string {
	if total <= 0 {
		return "100%"
	}
	return fmt.Sprintf("%d%%", current*100/total)
}
