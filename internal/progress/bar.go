package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Bar redraws a single progress line in place and prints interrupt lines
// above it.
type Bar struct {
	mu      sync.Mutex
	w       io.Writer
	title   string
	total   int
	current int
	label   string
	started time.Time
	now     func() time.Time
	bar     progress.Model
}

// NewBar creates a Bar and draws it at zero progress.
func NewBar(w io.Writer, title string, total int) *Bar {
	b := &Bar{
		w:     w,
		title: title,
		total: total,
		label: "starting...",
		now:   time.Now,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(20), progress.WithoutPercentage()),
	}
	b.started = b.now()

	b.mu.Lock()
	b.draw()
	b.mu.Unlock()
	return b
}

// Interrupt implements Sink.
func (b *Bar) Interrupt(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.w, "\r\033[K%s\n", colorize(line))
	b.draw()
}

// Tick implements Sink.
func (b *Bar) Tick(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current++
	b.label = label
	b.draw()
}

// Finish ends the progress line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintln(b.w)
}

func (b *Bar) draw() {
	ratio := 1.0
	if b.total > 0 {
		ratio = float64(b.current) / float64(b.total)
	}

	fmt.Fprintf(b.w, "\r\033[K%s %s %s %d/%d(%s) %s",
		b.title,
		b.bar.ViewAs(ratio),
		labelStyle.Render(b.label),
		b.current, b.total,
		percent(b.current, b.total),
		b.eta())
}

// eta extrapolates the remaining time from the average time per tick.
func (b *Bar) eta() string {
	if b.current == 0 || b.current >= b.total {
		return "0.0s"
	}
	elapsed := b.now().Sub(b.started)
	remaining := elapsed / time.Duration(b.current) * time.Duration(b.total-b.current)
	return fmt.Sprintf("%.1fs", remaining.Seconds())
}

func colorize(line string) string {
	switch {
	case strings.HasSuffix(line, " success"):
		return strings.TrimSuffix(line, "success") + successStyle.Render("success")
	case strings.HasSuffix(line, " failure"):
		return strings.TrimSuffix(line, "failure") + failureStyle.Render("failure")
	}
	return line
}
