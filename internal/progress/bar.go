// Package progress renders a one-line album progress bar for interactive runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Bar tracks how many albums of a batch have been processed.
type Bar struct {
	out       io.Writer
	total     int
	current   int
	failed    int
	label     string
	mu        sync.Mutex
	startTime time.Time
	lastPrint time.Time
	done      bool
}

// New creates a bar writing to stdout.
func New(total int) *Bar {
	return NewWithWriter(os.Stdout, total)
}

// NewWithWriter creates a bar writing to w.
func NewWithWriter(w io.Writer, total int) *Bar {
	now := time.Now()
	return &Bar{out: w, total: total, startTime: now, lastPrint: now}
}

// Start shows the album being worked on.
func (b *Bar) Start(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label = label
	b.render()
}

// Increment records a finished album. failed marks albums that ended in an error.
func (b *Bar) Increment(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current++
	if failed {
		b.failed++
	}

	// Update display every 500ms or when complete
	now := time.Now()
	if now.Sub(b.lastPrint) > 500*time.Millisecond || b.current >= b.total {
		b.render()
		b.lastPrint = now
	}
}

// Finish marks the progress as complete
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.done {
		b.current = b.total
		b.label = ""
		b.render()
		fmt.Fprintln(b.out)
		b.done = true
	}
}

func (b *Bar) render() {
	if b.done {
		return
	}
	fmt.Fprint(b.out, "\r"+b.line(time.Since(b.startTime)))
}

func (b *Bar) line(elapsed time.Duration) string {
	filled := 0
	percentage := 100.0
	if b.total > 0 {
		filled = barWidth * b.current / b.total
		percentage = float64(b.current) / float64(b.total) * 100
	}

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(strings.Repeat("█", filled))
	sb.WriteString(strings.Repeat("░", barWidth-filled))
	fmt.Fprintf(&sb, "] %d/%d albums (%.0f%%)", b.current, b.total, percentage)
	if b.failed > 0 {
		fmt.Fprintf(&sb, " - %d failed", b.failed)
	}
	fmt.Fprintf(&sb, " - %s", formatDuration(elapsed))
	if b.label != "" {
		fmt.Fprintf(&sb, " - %s", truncate(b.label, 40))
	}
	// Pad over leftovers of a longer previous line.
	sb.WriteString("   ")
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
