// Package rawalbum turns folders of local audio files into RawAlbums.
package rawalbum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mptreasury/internal/cue"
	"mptreasury/internal/logger"
	"mptreasury/internal/model"
	"mptreasury/internal/naming"
	"mptreasury/pkg/utils"
)

var (
	// ErrEmptyAlbum is returned when an album folder yields no tracks.
	ErrEmptyAlbum = errors.New("album has no tracks")
	// ErrUnsupportedFormat is returned for music files outside the supported formats.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// FolderType tells whether a folder holds one album or several.
type FolderType int

const (
	AlbumFolder FolderType = iota
	ArtistFolder
)

func (t FolderType) String() string {
	switch t {
	case AlbumFolder:
		return "album folder"
	case ArtistFolder:
		return "artist folder"
	default:
		return fmt.Sprintf("FolderType(%d)", int(t))
	}
}

// ClassifyFolder counts the immediate subfolders and music files of dir.
// A cue sheet next to a single audio file is always an album.
func ClassifyFolder(dir string) (FolderType, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return AlbumFolder, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var subdirs, musicFiles, cueSheets int
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			subdirs++
		case utils.IsCueSheet(entry.Name()):
			cueSheets++
		case utils.IsMusicFile(entry.Name()):
			musicFiles++
		}
	}

	if cueSheets == 1 && musicFiles == 1 {
		return AlbumFolder, nil
	}
	if musicFiles > subdirs {
		return AlbumFolder, nil
	}
	return ArtistFolder, nil
}

// CueSplitter splits a cue-backed folder and returns the folder holding the tracks.
type CueSplitter interface {
	Split(ctx context.Context, dir, album, artist string) (string, error)
}

// BuildError records why one album folder could not be built.
type BuildError struct {
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(e.Path), e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// BatchError collects the failed album folders of an artist folder.
type BatchError struct {
	Failures []*BuildError
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d album folder(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Builder builds RawAlbums from folders
type Builder struct {
	Splitter CueSplitter
	Logger   *logger.Logger
}

// NewBuilder creates a Builder
func NewBuilder(splitter CueSplitter, log *logger.Logger) *Builder {
	return &Builder{Splitter: splitter, Logger: log}
}

// Build returns one RawAlbum for an album folder or one per subfolder of an
// artist folder. For artist folders the albums that could be built are
// returned together with a *BatchError describing the ones that could not.
func (b *Builder) Build(ctx context.Context, dir string) ([]*model.RawAlbum, error) {
	folderType, err := ClassifyFolder(dir)
	if err != nil {
		return nil, err
	}
	b.Logger.Debug("%s classified as %s", dir, folderType)

	if folderType == AlbumFolder {
		album, err := b.BuildAlbum(ctx, dir)
		if err != nil {
			return nil, &BuildError{Path: dir, Err: err}
		}
		return []*model.RawAlbum{album}, nil
	}

	subdirs, err := utils.ListSubdirs(dir)
	if err != nil {
		return nil, err
	}

	var albums []*model.RawAlbum
	var batch BatchError
	for _, sub := range subdirs {
		if ctx.Err() != nil {
			return albums, ctx.Err()
		}
		album, err := b.BuildAlbum(ctx, sub)
		if err != nil {
			b.Logger.Warn("Skipping %s: %v", filepath.Base(sub), err)
			batch.Failures = append(batch.Failures, &BuildError{Path: sub, Err: err})
			continue
		}
		albums = append(albums, album)
	}

	if len(batch.Failures) > 0 {
		return albums, &batch
	}
	return albums, nil
}

// BuildAlbum builds a single RawAlbum from an album folder.
func (b *Builder) BuildAlbum(ctx context.Context, dir string) (*model.RawAlbum, error) {
	identity, trackDir, err := b.identify(ctx, dir)
	if err != nil {
		return nil, err
	}

	files, err := utils.ListAudioFiles(trackDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyAlbum, trackDir)
	}

	songs := make([]model.RawSong, 0, len(files))
	for _, file := range files {
		if !utils.IsSupportedAudio(file) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(file))
		}
		title, err := naming.ParseTrackTitle(file)
		if err != nil {
			return nil, err
		}
		songs = append(songs, model.NewRawSong(title, file))
	}

	album, err := model.NewRawAlbum(identity.Album, identity.Artist, identity.Details, trackDir, songs)
	if err != nil {
		return nil, err
	}
	b.Logger.Debug("Built raw album %q by %q with %d tracks", album.Name, album.ArtistName, len(album.Songs))
	return album, nil
}

// identify returns the album identity and the folder holding its tracks.
func (b *Builder) identify(ctx context.Context, dir string) (naming.FolderName, string, error) {
	cueBacked, err := cue.IsCueBacked(dir)
	if err != nil {
		return naming.FolderName{}, "", err
	}

	if !cueBacked {
		identity, err := naming.ParseAlbumFolderName(filepath.Base(dir))
		return identity, dir, err
	}

	meta, err := cue.ParseMetadata(dir)
	if err != nil {
		return naming.FolderName{}, "", err
	}
	identity := naming.FolderName{Album: meta.Album, Artist: meta.Artist, Details: meta.Details}
	if identity.Album == "" {
		fromFolder, err := naming.ParseAlbumFolderName(filepath.Base(dir))
		if err != nil {
			return naming.FolderName{}, "", err
		}
		identity.Album = fromFolder.Album
		if identity.Artist == "" {
			identity.Artist = fromFolder.Artist
		}
	}

	if b.Splitter == nil {
		return naming.FolderName{}, "", fmt.Errorf("%w: no splitter configured", cue.ErrCueSplit)
	}
	trackDir, err := b.Splitter.Split(ctx, dir, identity.Album, identity.Artist)
	if err != nil {
		return naming.FolderName{}, "", err
	}
	return identity, trackDir, nil
}
