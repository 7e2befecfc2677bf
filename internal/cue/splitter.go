package cue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mptreasury/internal/logger"
	"mptreasury/pkg/utils"
)

// DefaultCommand is the external splitter.
const DefaultCommand = "shnsplit"

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec. Stderr is kept for error messages.
type ExecRunner struct {
	Verbose bool
}

// Run executes name with args and waits for it to finish
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if r.Verbose {
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w\nDetails: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Splitter turns a cue-backed folder into one audio file per track.
type Splitter struct {
	Command  string
	CacheDir string
	Timeout  time.Duration
	Runner   Runner
	Logger   *logger.Logger

	checked bool
}

// NewSplitter creates a Splitter writing into cacheDir.
func NewSplitter(command, cacheDir string, timeout time.Duration, runner Runner, log *logger.Logger) *Splitter {
	if command == "" {
		command = DefaultCommand
	}
	return &Splitter{
		Command:  command,
		CacheDir: cacheDir,
		Timeout:  timeout,
		Runner:   runner,
		Logger:   log,
	}
}

// Destination returns the cache folder a split of album by artist is written to.
func (s *Splitter) Destination(album, artist string) string {
	return filepath.Join(s.CacheDir, "split",
		nonEmpty(utils.SanitizePathComponent(artist), "Unknown Artist"),
		nonEmpty(utils.SanitizePathComponent(album), "Unknown Album"))
}

// Split runs the external splitter on the cue sheet in dir and returns the
// folder that holds the resulting tracks.
func (s *Splitter) Split(ctx context.Context, dir, album, artist string) (string, error) {
	if !s.checked {
		if _, ok := s.Runner.(ExecRunner); ok {
			if err := utils.CheckDependencies(s.Command); err != nil {
				return "", fmt.Errorf("%w: %v", ErrCueSplit, err)
			}
		}
		s.checked = true
	}

	cueSheet, err := singleCueSheet(dir)
	if err != nil {
		return "", err
	}
	audio, err := utils.ListAudioFiles(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCueSplit, err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: no audio file next to %s", ErrCueSplit, cueSheet)
	}

	// A previous split of the same album is replaced
	dest := s.Destination(album, artist)
	if err := utils.Cleanup(s.CacheDir, dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCueSplit, err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %v", ErrCueSplit, dest, err)
	}

	runCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	s.Logger.Info("Splitting %s", filepath.Base(cueSheet))
	s.Logger.Debug("Split destination: %s", dest)

	args := []string{"-f", cueSheet, "-t", "%n - %t", "-o", "flac", "-d", dest, audio[0]}
	if err := s.Runner.Run(runCtx, s.Command, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s timed out after %s", ErrCueSplit, s.Command, s.Timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrCueSplit, err)
	}

	return LocateTrackFolder(dest)
}

// LocateTrackFolder descends through single-child folders until it finds one
// that contains audio files.
func LocateTrackFolder(dir string) (string, error) {
	for {
		audio, err := utils.ListAudioFiles(dir)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCueSplit, err)
		}
		if len(audio) > 0 {
			return dir, nil
		}

		subdirs, err := utils.ListSubdirs(dir)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCueSplit, err)
		}
		switch len(subdirs) {
		case 0:
			return "", fmt.Errorf("%w: no tracks found under %s", ErrCueSplit, dir)
		case 1:
			dir = subdirs[0]
		default:
			return "", fmt.Errorf("%w: %s has %d subfolders and no tracks", ErrCueSplit, dir, len(subdirs))
		}
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
