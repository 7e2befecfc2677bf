package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, false)

	l.Info("imported %d albums", 2)
	l.Debug("hidden")
	l.Warn("careful")
	l.Error("broken: %v", "disk")

	out := buf.String()
	for _, want := range []string{"imported 2 albums\n", "[WARN] careful\n", "[ERROR] broken: disk\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line printed without verbose: %q", out)
	}
}

func TestProgressBarSilencesStdout(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, false)
	l.SetProgressBar(true)
	l.Info("quiet")
	l.SetProgressBar(false)
	l.Info("loud")

	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFileLogGetsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l := NewWithWriter(&bytes.Buffer{}, false)
	if err := l.SetFileLog(path); err != nil {
		t.Fatal(err)
	}
	l.Debug("candidate %d rejected", 3)
	l.Info("done")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[DEBUG] candidate 3 rejected") || !strings.Contains(string(data), "done") {
		t.Errorf("file log = %q", data)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
