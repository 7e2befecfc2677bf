package utils

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExtensions(t *testing.T) {
	tests := []struct {
		path      string
		music     bool
		supported bool
	}{
		{"a.flac", true, true},
		{"a.MP3", true, true},
		{"a.wav", true, true},
		{"a.m4a", true, false},
		{"a.ape", true, false},
		{"cover.jpg", false, false},
		{"album.cue", false, false},
	}
	for _, tt := range tests {
		if got := IsMusicFile(tt.path); got != tt.music {
			t.Errorf("IsMusicFile(%q) = %v, want %v", tt.path, got, tt.music)
		}
		if got := IsSupportedAudio(tt.path); got != tt.supported {
			t.Errorf("IsSupportedAudio(%q) = %v, want %v", tt.path, got, tt.supported)
		}
	}
	if !IsCueSheet("Album.CUE") {
		t.Error("IsCueSheet should ignore case")
	}
}

func TestListAudioFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"02 - b.mp3", "01 - a.flac", "cover.jpg", "log.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "scans.flac"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := ListAudioFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "01 - a.flac"), filepath.Join(dir, "02 - b.mp3")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListAudioFiles = %v, want %v", got, want)
	}
}

func TestCleanupRefusesOutsideRoot(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "split", "x")
	if err := os.MkdirAll(inside, 0755); err != nil {
		t.Fatal(err)
	}

	if err := Cleanup(root, root); err == nil {
		t.Error("Cleanup should refuse to delete the root itself")
	}
	if err := Cleanup(root, t.TempDir()); err == nil {
		t.Error("Cleanup should refuse directories outside root")
	}
	if err := Cleanup(root, inside); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(inside); !os.IsNotExist(err) {
		t.Error("directory inside root should be removed")
	}
}

func TestCopyAndMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.flac")
	if err := os.WriteFile(src, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	copied := filepath.Join(dir, "a", "b", "copy.flac")
	if err := CopyFile(src, copied); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if data, _ := os.ReadFile(copied); string(data) != "audio" {
		t.Errorf("copied content = %q", data)
	}

	moved := filepath.Join(dir, "c", "moved.flac")
	if err := MoveFile(src, moved); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone after MoveFile")
	}
	if err := MoveFile(src, moved); err == nil {
		t.Error("MoveFile of a missing source should fail")
	}
}

func TestSanitizePathComponent(t *testing.T) {
	if got := SanitizePathComponent(` AC/DC: "Live" `); got != "AC_DC_ _Live_" {
		t.Errorf("SanitizePathComponent = %q", got)
	}
}

func TestCopyAndMoveFileNewKeepExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.flac")
	dst := filepath.Join(dir, "dst.flac")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileNew(src, dst); !errors.Is(err, os.ErrExist) {
		t.Errorf("CopyFileNew error = %v, want os.ErrExist", err)
	}
	if err := MoveFileNew(src, dst); !errors.Is(err, os.ErrExist) {
		t.Errorf("MoveFileNew error = %v, want os.ErrExist", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "old" {
		t.Errorf("destination content = %q, want %q", data, "old")
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should be left in place: %v", err)
	}

	fresh := filepath.Join(dir, "sub", "fresh.flac")
	if err := CopyFileNew(src, fresh); err != nil {
		t.Fatalf("CopyFileNew to a free path: %v", err)
	}
}
