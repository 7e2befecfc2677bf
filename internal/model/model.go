package model

import (
	"errors"
	"fmt"
)

// ErrRemotePathSet is returned when a song that was already uploaded is given a second remote path.
var ErrRemotePathSet = errors.New("remote path already set")

// TrackTypeTrack is the catalog track type that takes part in matching.
// Other types (e.g. "heading", "index") only structure the catalog listing.
const TrackTypeTrack = "track"

// RawSong is a locally discovered audio file that has not been identified yet.
type RawSong struct {
	title      string
	sourcePath string
	AlbumName  string
	ArtistName string
}

// NewRawSong creates a raw song. Title and path cannot change afterwards.
func NewRawSong(title, sourcePath string) RawSong {
	return RawSong{title: title, sourcePath: sourcePath}
}

func (s RawSong) Title() string      { return s.title }
func (s RawSong) SourcePath() string { return s.sourcePath }

// RawAlbum groups the raw songs found in one album folder with the identity
// inferred from the folder name or cue sheet.
type RawAlbum struct {
	Name       string
	ArtistName string
	Details    string
	MusicPath  string
	Songs      []RawSong
}

// NewRawAlbum builds a raw album, back-filling album and artist names on songs
// that don't carry them and rejecting songs that disagree with the album.
func NewRawAlbum(name, artist, details, musicPath string, songs []RawSong) (*RawAlbum, error) {
	album := &RawAlbum{
		Name:       name,
		ArtistName: artist,
		Details:    details,
		MusicPath:  musicPath,
		Songs:      make([]RawSong, 0, len(songs)),
	}
	for _, song := range songs {
		if song.AlbumName == "" {
			song.AlbumName = name
		}
		if song.ArtistName == "" {
			song.ArtistName = artist
		}
		if song.AlbumName != name {
			return nil, fmt.Errorf("song %q has album %q, expected %q", song.title, song.AlbumName, name)
		}
		if song.ArtistName != artist {
			return nil, fmt.Errorf("song %q has artist %q, expected %q", song.title, song.ArtistName, artist)
		}
		album.Songs = append(album.Songs, song)
	}
	return album, nil
}

// TrackTitles returns the song titles in album order.
func (a *RawAlbum) TrackTitles() []string {
	titles := make([]string, len(a.Songs))
	for i, song := range a.Songs {
		titles[i] = song.title
	}
	return titles
}

// SongAt returns the song at index i of TrackTitles.
func (a *RawAlbum) SongAt(i int) (RawSong, bool) {
	if i < 0 || i >= len(a.Songs) {
		return RawSong{}, false
	}
	return a.Songs[i], true
}

// SongByTitle returns the first song with the given title.
func (a *RawAlbum) SongByTitle(title string) (RawSong, bool) {
	for _, song := range a.Songs {
		if song.title == title {
			return song, true
		}
	}
	return RawSong{}, false
}

// CatalogTrack is one entry of a catalog release's track listing.
type CatalogTrack struct {
	Title string
	Type  string
}

// CandidateRelease is a catalog release proposed as the identity of a raw album.
type CandidateRelease struct {
	Title       string
	Year        int
	Genres      []string
	ArtistID    string
	ArtistName  string
	ReleaseID   string
	MasterTitle string
	MasterID    string
	Tracks      []CatalogTrack
}

// MatchableTitles returns the titles of entries typed "track", in catalog order.
func (c CandidateRelease) MatchableTitles() []string {
	var titles []string
	for _, t := range c.Tracks {
		if t.Type == TrackTypeTrack {
			titles = append(titles, t.Title)
		}
	}
	return titles
}

// Genre returns the first genre or "" when the release has none.
func (c CandidateRelease) Genre() string {
	if len(c.Genres) == 0 {
		return ""
	}
	return c.Genres[0]
}

// MatchTriplet pairs a local track title with a catalog track title.
// LocalIndex is the position of the local title in the list that was matched,
// so two local files sharing a title stay distinct.
type MatchTriplet struct {
	LocalTrack   string
	LocalIndex   int
	CatalogTrack string
	Similarity   int
}

// Album is a persisted, identified album. ID is zero until stored.
type Album struct {
	ID          int64
	Name        string
	Genre       string
	ReleaseYear int
	ArtistID    string
	ArtistName  string
	ReleaseID   string
	MasterName  string
	MasterID    string
}

// AlbumFromCandidate copies the identity of an accepted candidate.
func AlbumFromCandidate(c CandidateRelease) *Album {
	return &Album{
		Name:        c.Title,
		Genre:       c.Genre(),
		ReleaseYear: c.Year,
		ArtistID:    c.ArtistID,
		ArtistName:  c.ArtistName,
		ReleaseID:   c.ReleaseID,
		MasterName:  c.MasterTitle,
		MasterID:    c.MasterID,
	}
}

// DedupKey identifies equivalent releases. Releases without a master fall
// back to their own release id so they don't collide with each other.
func (a *Album) DedupKey() string {
	if a.MasterID != "" {
		return "master:" + a.MasterID
	}
	return "release:" + a.ReleaseID
}

// Song is a persisted track belonging to an Album.
type Song struct {
	ID         int64
	Title      string
	LocalPath  string
	RemotePath string
	AlbumName  string
	ArtistName string
	Album      *Album
}

// SetRemotePath records where the song was uploaded. It can only be set once.
func (s *Song) SetRemotePath(path string) error {
	if s.RemotePath != "" {
		return fmt.Errorf("song %q: %w", s.Title, ErrRemotePathSet)
	}
	s.RemotePath = path
	return nil
}
