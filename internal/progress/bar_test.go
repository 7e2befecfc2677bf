package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLine(t *testing.T) {
	b := NewWithWriter(&bytes.Buffer{}, 4)
	b.current, b.failed, b.label = 2, 1, "Artist - Album"

	got := b.line(90 * time.Second)
	for _, want := range []string{"2/4 albums (50%)", "1 failed", "1m30s", "Artist - Album"} {
		if !strings.Contains(got, want) {
			t.Errorf("line %q missing %q", got, want)
		}
	}
	if n := strings.Count(got, "█"); n != barWidth/2 {
		t.Errorf("filled cells = %d, want %d", n, barWidth/2)
	}
}

func TestLineEmptyBatch(t *testing.T) {
	b := NewWithWriter(&bytes.Buffer{}, 0)
	if got := b.line(0); !strings.Contains(got, "0/0 albums (100%)") {
		t.Errorf("unexpected line %q", got)
	}
}

func TestFinishOnce(t *testing.T) {
	var buf bytes.Buffer
	b := NewWithWriter(&buf, 2)
	b.Start("first")
	b.Increment(false)
	b.Finish()
	b.Finish()

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected exactly one newline, got %q", out)
	}
	if !strings.Contains(out, "2/2 albums") {
		t.Errorf("final line missing, got %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ab", 4); got != "ab" {
		t.Errorf("truncate = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{75 * time.Second, "1m15s"},
		{2*time.Hour + 3*time.Minute, "2h3m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
