package library

import (
	"fmt"
	"strconv"

	"go.senan.xyz/taglib"

	"mptreasury/internal/model"
)

// Tagger writes catalog metadata into library files.
type Tagger struct{}

// Tag writes the song's catalog identity to its file. trackNumber is 1-based;
// zero leaves the track number untouched.
func (Tagger) Tag(song *model.Song, trackNumber int) error {
	return WriteTags(song.LocalPath, SongTags(song, trackNumber))
}

// SongTags builds the tag map for a song.
func SongTags(song *model.Song, trackNumber int) map[string][]string {
	tags := make(map[string][]string)

	if song.Title != "" {
		tags[taglib.Title] = []string{song.Title}
	}
	if song.ArtistName != "" {
		tags[taglib.Artist] = []string{song.ArtistName}
		tags[taglib.AlbumArtist] = []string{song.ArtistName}
	}
	if song.AlbumName != "" {
		tags[taglib.Album] = []string{song.AlbumName}
	}
	if trackNumber > 0 {
		tags[taglib.TrackNumber] = []string{strconv.Itoa(trackNumber)}
	}

	if album := song.Album; album != nil {
		if album.ReleaseYear > 0 {
			tags[taglib.Date] = []string{strconv.Itoa(album.ReleaseYear)}
		}
		if album.Genre != "" {
			tags[taglib.Genre] = []string{album.Genre}
		}
	}
	return tags
}

// WriteTags writes tags to an audio file.
func WriteTags(path string, tags map[string][]string) error {
	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}
