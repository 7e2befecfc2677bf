// Package library lays accepted albums out on disk under the library root.
package library

import (
	"fmt"
	"os"
	"path/filepath"

	"mptreasury/internal/logger"
	"mptreasury/internal/model"
	"mptreasury/pkg/utils"
)

// Relocator copies (or moves) songs to <root>/<artist>/<album>/<title><ext>.
type Relocator struct {
	Root   string
	Move   bool
	Logger *logger.Logger
}

// NewRelocator creates a Relocator for the library at root.
func NewRelocator(root string, move bool, log *logger.Logger) *Relocator {
	return &Relocator{Root: root, Move: move, Logger: log}
}

// Destination returns the library path for song, keeping the extension of
// its current file.
func (r *Relocator) Destination(song *model.Song) string {
	ext := filepath.Ext(song.LocalPath)
	return filepath.Join(r.Root,
		PathComponent(song.ArtistName, "Unknown Artist"),
		PathComponent(song.AlbumName, "Unknown Album"),
		PathComponent(song.Title, "Untitled")+ext)
}

type placement struct {
	song *model.Song
	src  string
	dst  string
}

// Relocation records the files placed by Relocate so they can be undone.
type Relocation struct {
	placed []placement
	dirs   []string
	move   bool
}

// Relocate places every song in the library and rewrites its LocalPath.
// Files already in the library are never replaced: a song whose destination
// is taken gets the next free " (n)" name. On failure the songs already
// placed are rolled back before returning.
func (r *Relocator) Relocate(songs []*model.Song) (*Relocation, error) {
	rel := &Relocation{move: r.Move}
	taken := make(map[string]bool)

	for _, song := range songs {
		want := r.Destination(song)
		dst := uniquePath(want, taken)
		taken[dst] = true
		if dst != want && !taken[want] {
			r.Logger.Warn("%s already exists, writing %s", want, dst)
		}

		albumDir := filepath.Dir(dst)
		if !exists(albumDir) {
			rel.dirs = append(rel.dirs, albumDir)
			if artistDir := filepath.Dir(albumDir); !exists(artistDir) {
				rel.dirs = append(rel.dirs, artistDir)
			}
		}

		var err error
		if r.Move {
			err = utils.MoveFileNew(song.LocalPath, dst)
		} else {
			err = utils.CopyFileNew(song.LocalPath, dst)
		}
		if err != nil {
			if rbErr := rel.Rollback(); rbErr != nil {
				r.Logger.Error("Rollback after failed relocation: %v", rbErr)
			}
			return nil, fmt.Errorf("relocate %q: %w", song.Title, err)
		}

		r.Logger.Debug("%s -> %s", song.LocalPath, dst)
		rel.placed = append(rel.placed, placement{song: song, src: song.LocalPath, dst: dst})
		song.LocalPath = dst
	}
	return rel, nil
}

// Paths returns the library paths written by the relocation.
func (rel *Relocation) Paths() []string {
	paths := make([]string, len(rel.placed))
	for i, p := range rel.placed {
		paths[i] = p.dst
	}
	return paths
}

// Rollback removes copied files (or moves them back) in reverse order and
// restores each song's original LocalPath. Only files and folders created by
// Relocate are touched; folders are removed when left empty.
func (rel *Relocation) Rollback() error {
	var firstErr error
	for i := len(rel.placed) - 1; i >= 0; i-- {
		p := rel.placed[i]
		var err error
		if rel.move {
			err = utils.MoveFileNew(p.dst, p.src)
		} else {
			err = os.Remove(p.dst)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("undo %s: %w", p.dst, err)
			}
			continue
		}
		p.song.LocalPath = p.src
	}
	rel.placed = nil

	// Album folders first, then artist folders. os.Remove fails on non-empty dirs.
	for _, dir := range rel.dirs {
		_ = os.Remove(dir)
	}
	rel.dirs = nil
	return firstErr
}

// uniquePath appends " (2)", " (3)", ... when path is already used by an
// earlier song of the batch or by a file on disk.
func uniquePath(path string, taken map[string]bool) string {
	if !taken[path] && !exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !taken[candidate] && !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
