package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// Formats the importer can handle.
var supportedExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".wav":  true,
}

// Everything recognised as music, supported or not.
var musicExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wma":  true,
	".ape":  true,
	".wv":   true,
	".alac": true,
	".aiff": true,
	".dsf":  true,
}

// CueExtension is the suffix of cue sheet files.
const CueExtension = ".cue"

// IsMusicFile reports whether path has a music file extension.
func IsMusicFile(path string) bool {
	return musicExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsSupportedAudio reports whether path is a music file in a supported format.
func IsSupportedAudio(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsCueSheet reports whether path is a cue sheet.
func IsCueSheet(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == CueExtension
}

// CheckDependencies verifies that the given external commands are installed
func CheckDependencies(commands ...string) error {
	for _, name := range commands {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("required command '%s' not found in PATH", name)
		}
	}
	return nil
}

// CreateTempDir creates a temporary folder inside parent (or the system temp dir when parent is empty)
func CreateTempDir(parent string) (string, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return "", fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, "mptreasury-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	return dir, nil
}

// Cleanup removes a scratch folder.
// Safety check: only deletes directories inside root
func Cleanup(root, dir string) error {
	if dir == "" {
		return nil
	}
	if root == "" {
		root = os.TempDir()
	}

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(dir))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to delete directory outside %s: %s", root, dir)
	}

	return os.RemoveAll(dir)
}

// ListAudioFiles returns the music files directly inside dir, sorted by name.
func ListAudioFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory path cannot be empty")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && IsMusicFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ListSubdirs returns the immediate subdirectories of dir, sorted by name.
func ListSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// MoveFile moves a file from src to dst, creating the destination directory if needed.
// Falls back to copy+delete when src and dst are on different filesystems.
func MoveFile(src, dst string) error {
	return moveFile(src, dst, false)
}

// MoveFileNew is MoveFile that fails with os.ErrExist instead of replacing dst.
func MoveFileNew(src, dst string) error {
	return moveFile(src, dst, true)
}

func moveFile(src, dst string, exclusive bool) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination paths cannot be empty")
	}

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("source file does not exist: %s", src)
	}
	if exclusive {
		if _, err := os.Lstat(dst); err == nil {
			return fmt.Errorf("failed to move %s: %w: %s", src, os.ErrExist, dst)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		// Cross-device link: fall back to copy + delete
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			flag := os.O_TRUNC
			if exclusive {
				flag = os.O_EXCL
			}
			if err := copyFile(src, dst, flag); err != nil {
				return err
			}
			return os.Remove(src)
		}
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	return nil
}

// CopyFile copies src to dst, creating the destination directory if needed.
// A partially written dst is removed on failure.
func CopyFile(src, dst string) error {
	return copyFile(src, dst, os.O_TRUNC)
}

// CopyFileNew is CopyFile that fails with os.ErrExist instead of replacing dst.
func CopyFileNew(src, dst string) error {
	return copyFile(src, dst, os.O_EXCL)
}

func copyFile(src, dst string, flag int) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination paths cannot be empty")
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", src, err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|flag, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination %s: %w", dst, err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := dstFile.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close destination %s: %w", dst, err)
	}

	return nil
}

var pathComponentReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizePathComponent replaces characters that are problematic in a single path element.
func SanitizePathComponent(s string) string {
	return strings.TrimSpace(pathComponentReplacer.Replace(strings.TrimSpace(s)))
}
