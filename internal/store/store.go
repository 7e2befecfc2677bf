// Package store persists imported albums and songs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mptreasury/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Store manages album and song persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the library database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AlbumID looks up an album equivalent to album (same master, or same release
// when there is no master).
func (s *Store) AlbumID(ctx context.Context, album *model.Album) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM albums WHERE dedup_key = ?", album.DedupKey()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup album %s: %w", album.DedupKey(), err)
	}
	return id, true, nil
}

// AddAlbumAndSongs inserts album and its songs in one transaction. IDs are
// assigned to album and songs only once the transaction commits.
func (s *Store) AddAlbumAndSongs(ctx context.Context, album *model.Album, songs []*model.Song) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO albums (
            name, genre, released, artist_id, artist_name,
            release_id, master_name, master_id, dedup_key, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		album.Name,
		album.Genre,
		album.ReleaseYear,
		album.ArtistID,
		album.ArtistName,
		album.ReleaseID,
		album.MasterName,
		album.MasterID,
		album.DedupKey(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert album: %w", err)
	}
	albumID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	songIDs := make([]int64, len(songs))
	for i, song := range songs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO songs (album_id, title, local_path, remote_path, album_name, artist_name)
             VALUES (?, ?, ?, ?, ?, ?)`,
			albumID,
			song.Title,
			song.LocalPath,
			nullableString(song.RemotePath),
			song.AlbumName,
			song.ArtistName,
		)
		if err != nil {
			return fmt.Errorf("insert song %q: %w", song.Title, err)
		}
		if songIDs[i], err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit album: %w", err)
	}

	album.ID = albumID
	for i, song := range songs {
		song.ID = songIDs[i]
		song.Album = album
	}
	return nil
}

const albumColumns = `id, name, genre, released, artist_id, artist_name, release_id, master_name, master_id`

// Albums lists every imported album ordered by artist and name.
func (s *Store) Albums(ctx context.Context) ([]*model.Album, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+albumColumns+" FROM albums ORDER BY artist_name COLLATE NOCASE, name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	var albums []*model.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, rows.Err()
}

// Album fetches one album by id.
func (s *Store) Album(ctx context.Context, id int64) (*model.Album, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+albumColumns+" FROM albums WHERE id = ?", id)
	album, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("album %d: %w", id, ErrNotFound)
	}
	return album, err
}

// SongsByAlbum lists the songs of an album in insertion order.
func (s *Store) SongsByAlbum(ctx context.Context, albumID int64) ([]*model.Song, error) {
	album, err := s.Album(ctx, albumID)
	if err != nil {
		return nil, err
	}
	return s.querySongs(ctx, "WHERE s.album_id = ? ORDER BY s.id", album.ID)
}

// SongsPendingUpload lists songs that have no remote path yet.
func (s *Store) SongsPendingUpload(ctx context.Context) ([]*model.Song, error) {
	return s.querySongs(ctx, "WHERE s.remote_path IS NULL ORDER BY s.album_id, s.id")
}

// SetSongRemotePath records the remote path of a song. A song's remote path
// can only be set once.
func (s *Store) SetSongRemotePath(ctx context.Context, songID int64, remotePath string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE songs SET remote_path = ? WHERE id = ? AND remote_path IS NULL", remotePath, songID)
	if err != nil {
		return fmt.Errorf("update song %d: %w", songID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM songs WHERE id = ?", songID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup song %d: %w", songID, err)
	}
	if exists == 0 {
		return fmt.Errorf("song %d: %w", songID, ErrNotFound)
	}
	return fmt.Errorf("song %d: %w", songID, model.ErrRemotePathSet)
}

func (s *Store) querySongs(ctx context.Context, where string, args ...interface{}) ([]*model.Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.title, s.local_path, s.remote_path, s.album_name, s.artist_name,
                a.id, a.name, a.genre, a.released, a.artist_id, a.artist_name,
                a.release_id, a.master_name, a.master_id
         FROM songs s JOIN albums a ON a.id = s.album_id `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	defer rows.Close()

	albums := make(map[int64]*model.Album)
	var songs []*model.Song
	for rows.Next() {
		var song model.Song
		var remote sql.NullString
		var album model.Album
		if err := rows.Scan(
			&song.ID, &song.Title, &song.LocalPath, &remote, &song.AlbumName, &song.ArtistName,
			&album.ID, &album.Name, &album.Genre, &album.ReleaseYear, &album.ArtistID, &album.ArtistName,
			&album.ReleaseID, &album.MasterName, &album.MasterID,
		); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		song.RemotePath = remote.String

		if existing, ok := albums[album.ID]; ok {
			song.Album = existing
		} else {
			a := album
			albums[album.ID] = &a
			song.Album = &a
		}
		songs = append(songs, &song)
	}
	return songs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlbum(row rowScanner) (*model.Album, error) {
	var a model.Album
	err := row.Scan(&a.ID, &a.Name, &a.Genre, &a.ReleaseYear, &a.ArtistID, &a.ArtistName,
		&a.ReleaseID, &a.MasterName, &a.MasterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan album: %w", err)
	}
	return &a, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
