// Package remote copies library songs to remote storage and records where
// each one went.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"mptreasury/internal/library"
	"mptreasury/internal/logger"
	"mptreasury/internal/model"
	"mptreasury/pkg/utils"
)

// Uploader stores a local file under key and returns the remote path.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// Store records remote paths.
type Store interface {
	SetSongRemotePath(ctx context.Context, songID int64, remotePath string) error
}

// Key returns the object key for a song: <artist>/<album>/<title><ext>,
// ASCII only.
func Key(song *model.Song) string {
	return path.Join(
		library.PathComponent(song.ArtistName, "Unknown Artist"),
		library.PathComponent(song.AlbumName, "Unknown Album"),
		library.PathComponent(song.Title, "Untitled")+strings.ToLower(filepath.Ext(song.LocalPath)))
}

// DirUploader writes objects below a directory, typically a mounted bucket.
type DirUploader struct {
	Root string
}

// NewDirUploader creates an uploader rooted at dir.
func NewDirUploader(dir string) *DirUploader {
	return &DirUploader{Root: dir}
}

func (u *DirUploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if u.Root == "" {
		return "", errors.New("remote directory not configured")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("upload %s: %w", localPath, err)
	}

	dst := filepath.Join(u.Root, filepath.FromSlash(key))
	if err := utils.CopyFile(localPath, dst); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// Result summarises an upload run.
type Result struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// UploadSongs uploads every song that has no remote path yet. A song's remote
// path is set at most once, in memory and in the store. Songs that fail are
// counted and logged; the run continues with the next song.
func UploadSongs(ctx context.Context, up Uploader, store Store, songs []*model.Song, log *logger.Logger) (Result, error) {
	var res Result
	for _, song := range songs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if song.RemotePath != "" {
			log.Debug("%s already uploaded to %s", song.Title, song.RemotePath)
			res.Skipped++
			continue
		}

		remotePath, err := up.Upload(ctx, song.LocalPath, Key(song))
		if err != nil {
			log.Error("Upload of %s failed: %v", song.Title, err)
			res.Failed++
			continue
		}
		if err := store.SetSongRemotePath(ctx, song.ID, remotePath); err != nil {
			if errors.Is(err, model.ErrRemotePathSet) {
				log.Warn("%s was uploaded concurrently, keeping the stored path", song.Title)
				res.Skipped++
				continue
			}
			log.Error("Recording remote path of %s failed: %v", song.Title, err)
			res.Failed++
			continue
		}
		if err := song.SetRemotePath(remotePath); err != nil {
			return res, err
		}

		log.Info("Uploaded %s", remotePath)
		res.Uploaded++
	}
	return res, nil
}
