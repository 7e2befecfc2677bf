package library

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/taglib"

	"mptreasury/internal/logger"
	"mptreasury/internal/model"
)

func TestASCII(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ǹ Test Title", "N Test Title"},
		{"Café Tacvba", "Cafe Tacvba"},
		{"Motörhead", "Motorhead"},
		{"Björk", "Bjork"},
		{"MiXeD Case", "MiXeD Case"},
		{"ﬁve", "five"},
		{"日本", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ASCII(tt.in))
		})
	}
}

func TestPathComponent(t *testing.T) {
	assert.Equal(t, "AC_DC", PathComponent("AC/DC", "x"))
	assert.Equal(t, "Unknown", PathComponent("日本", "Unknown"))
	assert.Equal(t, "Unknown", PathComponent("..", "Unknown"))
}

func newSong(t *testing.T, dir, title, file string) *model.Song {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(title), 0644))
	return &model.Song{Title: title, LocalPath: path, AlbumName: "Ǹ Test Album", ArtistName: "Test Artist"}
}

func TestRelocateNormalizesPaths(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	song := newSong(t, src, "Ǹ Test Title", "01 - Ǹ Test Title.flac")

	r := NewRelocator(root, false, logger.Discard())
	_, err := r.Relocate([]*model.Song{song})
	require.NoError(t, err)

	want := filepath.Join(root, "Test Artist", "N Test Album", "N Test Title.flac")
	assert.Equal(t, want, song.LocalPath)
	assert.FileExists(t, want)
	// Copy, not move.
	assert.FileExists(t, filepath.Join(src, "01 - Ǹ Test Title.flac"))
}

func TestRelocatePreservesTitles(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	var songs []*model.Song
	for _, title := range []string{"One", "Two", "Three"} {
		songs = append(songs, newSong(t, src, title, title+".mp3"))
	}

	r := NewRelocator(root, false, logger.Discard())
	_, err := r.Relocate(songs)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "Test Artist", "N Test Album"))
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	sort.Strings(got)
	assert.Equal(t, []string{"One.mp3", "Three.mp3", "Two.mp3"}, got)
}

func TestRelocateDuplicateTitles(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	a := newSong(t, src, "Intro", "01 - Intro.flac")
	b := newSong(t, src, "Intro", "09 - Intro.flac")

	_, err := NewRelocator(root, false, logger.Discard()).Relocate([]*model.Song{a, b})
	require.NoError(t, err)
	assert.Equal(t, "Intro.flac", filepath.Base(a.LocalPath))
	assert.Equal(t, "Intro (2).flac", filepath.Base(b.LocalPath))
}

func TestRelocateRollback(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	song := newSong(t, src, "One", "1 - One.flac")
	original := song.LocalPath

	rel, err := NewRelocator(root, false, logger.Discard()).Relocate([]*model.Song{song})
	require.NoError(t, err)
	placed := rel.Paths()
	require.Len(t, placed, 1)

	require.NoError(t, rel.Rollback())
	assert.NoFileExists(t, placed[0])
	assert.NoDirExists(t, filepath.Join(root, "Test Artist"))
	assert.Equal(t, original, song.LocalPath)
	assert.FileExists(t, original)
}

func TestRelocateMoveRollback(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	song := newSong(t, src, "One", "1 - One.flac")
	original := song.LocalPath

	rel, err := NewRelocator(root, true, logger.Discard()).Relocate([]*model.Song{song})
	require.NoError(t, err)
	assert.NoFileExists(t, original)

	require.NoError(t, rel.Rollback())
	assert.FileExists(t, original)
}

func TestRelocateFailureRollsBackEarlierSongs(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	good := newSong(t, src, "Good", "1 - Good.flac")
	missing := &model.Song{Title: "Missing", LocalPath: filepath.Join(src, "gone.flac"), AlbumName: "Ǹ Test Album", ArtistName: "Test Artist"}

	_, err := NewRelocator(root, false, logger.Discard()).Relocate([]*model.Song{good, missing})
	require.Error(t, err)
	assert.Equal(t, filepath.Join(src, "1 - Good.flac"), good.LocalPath)
	assert.NoFileExists(t, filepath.Join(root, "Test Artist", "N Test Album", "Good.flac"))
}

func TestLockExcludesConcurrentHolders(t *testing.T) {
	root := t.TempDir()
	l := NewLock(root)
	require.NoError(t, l.Lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Lock(ctx))

	require.NoError(t, l.Unlock())
	require.NoError(t, l.Lock(context.Background()))
	require.NoError(t, l.Unlock())
}

func TestSongTags(t *testing.T) {
	album := &model.Album{ReleaseYear: 1983, Genre: "Electronic"}
	song := &model.Song{Title: "Age Of Consent", ArtistName: "New Order", AlbumName: "Power, Corruption & Lies", Album: album}

	tags := SongTags(song, 1)
	assert.Equal(t, []string{"Age Of Consent"}, tags[taglib.Title])
	assert.Equal(t, []string{"New Order"}, tags[taglib.AlbumArtist])
	assert.Equal(t, []string{"1"}, tags[taglib.TrackNumber])
	assert.Equal(t, []string{"1983"}, tags[taglib.Date])
	assert.Equal(t, []string{"Electronic"}, tags[taglib.Genre])

	_, hasTrack := SongTags(song, 0)[taglib.TrackNumber]
	assert.False(t, hasTrack)
}

// createTestAudioFile generates a minimal MP3 using ffmpeg.
// Skips the test if ffmpeg is not available.
func createTestAudioFile(t *testing.T, dir string) string {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping tagger test")
	}

	path := filepath.Join(dir, "test.mp3")
	cmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "anullsrc=r=44100:cl=mono", "-t", "0.1", "-q:a", "9", path)
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	return path
}

func TestTaggerWritesFile(t *testing.T) {
	path := createTestAudioFile(t, t.TempDir())
	song := &model.Song{Title: "Test Song", ArtistName: "Test Artist", AlbumName: "Test Album", LocalPath: path,
		Album: &model.Album{ReleaseYear: 2023, Genre: "Pop"}}

	require.NoError(t, Tagger{}.Tag(song, 3))

	tags, err := taglib.ReadTags(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Song", tags[taglib.Title][0])
	assert.Equal(t, "3", tags[taglib.TrackNumber][0])
	assert.Equal(t, "2023", tags[taglib.Date][0])
}

func TestRelocateNeverReplacesLibraryFiles(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	albumDir := filepath.Join(root, "Test Artist", "N Test Album")
	require.NoError(t, os.MkdirAll(albumDir, 0755))
	existing := filepath.Join(albumDir, "One.flac")
	require.NoError(t, os.WriteFile(existing, []byte("already in library"), 0644))

	song := newSong(t, src, "One", "1 - One.flac")
	rel, err := NewRelocator(root, false, logger.Discard()).Relocate([]*model.Song{song})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(albumDir, "One (2).flac"), song.LocalPath)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "already in library", string(data))

	require.NoError(t, rel.Rollback())
	assert.NoFileExists(t, filepath.Join(albumDir, "One (2).flac"))
	assert.FileExists(t, existing)
	assert.DirExists(t, albumDir)
}

func TestRollbackKeepsLibraryPathWhenUndoFails(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	a := newSong(t, src, "One", "1 - One.flac")
	b := newSong(t, src, "Two", "2 - Two.flac")
	originals := []string{a.LocalPath, b.LocalPath}

	rel, err := NewRelocator(root, true, logger.Discard()).Relocate([]*model.Song{a, b})
	require.NoError(t, err)
	placed := rel.Paths()

	// New files at the source paths block both moves back.
	for _, p := range originals {
		require.NoError(t, os.WriteFile(p, []byte("blocker"), 0644))
	}

	assert.Error(t, rel.Rollback())
	assert.Equal(t, placed[0], a.LocalPath)
	assert.Equal(t, placed[1], b.LocalPath)
	assert.FileExists(t, placed[0])
	assert.FileExists(t, placed[1])
}
