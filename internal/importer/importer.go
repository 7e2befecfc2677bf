// Package importer resolves raw albums against a catalog and brings the
// accepted ones into the library.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mptreasury/internal/catalog"
	"mptreasury/internal/library"
	"mptreasury/internal/logger"
	"mptreasury/internal/match"
	"mptreasury/internal/model"
	"mptreasury/internal/rawalbum"
)

var (
	// ErrSearch is returned when the catalog could not be queried.
	ErrSearch = errors.New("catalog search failed")
	// ErrDedupLookup is returned when the duplicate check cannot reach storage.
	ErrDedupLookup = errors.New("duplicate lookup failed")
	// ErrRelocation is returned when files could not be placed in the library.
	ErrRelocation = errors.New("relocation failed")
	// ErrPersistence is returned when an accepted album could not be stored.
	ErrPersistence = errors.New("persistence failed")
)

// DefaultMaxGuessAttempts bounds how many candidates are evaluated per album.
const DefaultMaxGuessAttempts = 3

// Store is the persistence the importer needs.
type Store interface {
	AlbumID(ctx context.Context, album *model.Album) (int64, bool, error)
	AddAlbumAndSongs(ctx context.Context, album *model.Album, songs []*model.Song) error
}

// AlbumBuilder turns a folder into raw albums.
type AlbumBuilder interface {
	Build(ctx context.Context, dir string) ([]*model.RawAlbum, error)
}

// Tagger writes catalog metadata into relocated files.
type Tagger interface {
	Tag(song *model.Song, trackNumber int) error
}

// Locker guards the duplicate check, relocation and persistence of one album.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Options tune candidate selection.
type Options struct {
	MinimumScore     float64
	MaxGuessAttempts int
	SearchTimeout    time.Duration
}

// Hooks report progress. Every field is optional.
type Hooks struct {
	OnAlbumsFound   func(total int)
	OnAlbumStarted  func(index int, raw *model.RawAlbum)
	OnAlbumFinished func(index int, result AlbumResult)
}

// Importer drives classification, search, matching and persistence.
type Importer struct {
	Builder   AlbumBuilder
	Searcher  catalog.Searcher
	Store     Store
	Relocator *library.Relocator
	Tagger    Tagger
	Lock      Locker
	Options   Options
	Logger    *logger.Logger
}

// New creates an Importer. Tagger and Lock may be set afterwards.
func New(builder AlbumBuilder, searcher catalog.Searcher, store Store, relocator *library.Relocator, opts Options, log *logger.Logger) *Importer {
	if opts.MaxGuessAttempts <= 0 {
		opts.MaxGuessAttempts = DefaultMaxGuessAttempts
	}
	return &Importer{
		Builder:   builder,
		Searcher:  searcher,
		Store:     store,
		Relocator: relocator,
		Options:   opts,
		Logger:    log,
	}
}

// ImportFolder imports every album found in dir. Per-album failures are
// recorded in the report and never stop the batch. The returned error is
// reserved for failures that prevent looking at the folder at all.
func (imp *Importer) ImportFolder(ctx context.Context, dir string, hooks Hooks) (*Report, error) {
	imp.Logger.Info("=== Importing %s ===", dir)

	report := &Report{}
	albums, err := imp.Builder.Build(ctx, dir)
	if err != nil {
		var batch *rawalbum.BatchError
		var single *rawalbum.BuildError
		switch {
		case errors.As(err, &batch):
			for _, f := range batch.Failures {
				report.add(AlbumResult{Path: f.Path, Outcome: OutcomeFailed, Err: f.Err})
			}
		case errors.As(err, &single):
			report.add(AlbumResult{Path: single.Path, Outcome: OutcomeFailed, Err: single.Err})
		default:
			return nil, err
		}
	}

	if hooks.OnAlbumsFound != nil {
		hooks.OnAlbumsFound(len(albums))
	}

	for i, raw := range albums {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if hooks.OnAlbumStarted != nil {
			hooks.OnAlbumStarted(i, raw)
		}

		result := imp.ImportAlbum(ctx, raw)
		report.add(result)

		switch result.Outcome {
		case OutcomeFailed:
			imp.Logger.Error("%s: %v", result.Path, result.Err)
		case OutcomeNoMatch:
			imp.Logger.Info("No candidate accepted for %q by %q", raw.Name, raw.ArtistName)
		}

		if hooks.OnAlbumFinished != nil {
			hooks.OnAlbumFinished(i, result)
		}
	}

	return report, nil
}

// ImportAlbum searches the catalog for raw, accepts the first candidate that
// scores at or above the minimum and brings it into the library.
func (imp *Importer) ImportAlbum(ctx context.Context, raw *model.RawAlbum) AlbumResult {
	result := AlbumResult{Path: raw.MusicPath, RawName: raw.Name, RawArtist: raw.ArtistName}
	imp.Logger.Info("Searching for %q by %q", raw.Name, raw.ArtistName)

	candidates, err := imp.search(ctx, raw)
	if err != nil {
		return result.fail(err)
	}

	candidate, res, ok := imp.pick(raw, candidates)
	if !ok {
		result.Outcome = OutcomeNoMatch
		return result
	}
	result.Score = res.Score

	album, songs := buildAlbum(raw, candidate, res.Triplets)
	result.Album, result.Songs = album, songs

	outcome, err := imp.commit(ctx, album, songs)
	if err != nil {
		return result.fail(err)
	}
	result.Outcome = outcome
	result.AlbumID = album.ID
	return result
}

// search returns at most MaxGuessAttempts candidates from the first page.
func (imp *Importer) search(ctx context.Context, raw *model.RawAlbum) ([]model.CandidateRelease, error) {
	if imp.Options.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, imp.Options.SearchTimeout)
		defer cancel()
	}

	src, err := imp.Searcher.Search(ctx, raw.Name, raw.ArtistName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}
	page, err := src.NextPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}
	if len(page) > imp.Options.MaxGuessAttempts {
		page = page[:imp.Options.MaxGuessAttempts]
	}
	return page, nil
}

// pick returns the first acceptable candidate, in catalog order.
func (imp *Importer) pick(raw *model.RawAlbum, candidates []model.CandidateRelease) (model.CandidateRelease, match.Result, bool) {
	policy := match.Policy{MinimumScore: imp.Options.MinimumScore}
	local := raw.TrackTitles()

	for i, c := range candidates {
		res, err := match.Evaluate(local, c)
		if err != nil {
			imp.Logger.Debug("Candidate %d (%s by %s) rejected: %v", i, c.Title, c.ArtistName, err)
			continue
		}
		if !policy.Accepts(res.Score) {
			imp.Logger.Debug("Candidate %d (%s by %s, release %s) rejected with score %.1f", i, c.Title, c.ArtistName, c.ReleaseID, res.Score)
			continue
		}
		imp.Logger.Info("Accepted candidate %d: %s by %s (release %s) with score %.1f", i, c.Title, c.ArtistName, c.ReleaseID, res.Score)
		imp.Logger.Debug("Local tracks: %v", local)
		imp.Logger.Debug("Catalog tracks: %v", c.MatchableTitles())
		return c, res, true
	}
	return model.CandidateRelease{}, match.Result{}, false
}

// buildAlbum maps every triplet onto a new Song pointing at the local file.
// A triplet naming a local track the raw album doesn't have is a bug.
func buildAlbum(raw *model.RawAlbum, c model.CandidateRelease, triplets []model.MatchTriplet) (*model.Album, []*model.Song) {
	album := model.AlbumFromCandidate(c)
	songs := make([]*model.Song, 0, len(triplets))
	for _, t := range triplets {
		rawSong, ok := raw.SongAt(t.LocalIndex)
		if !ok || rawSong.Title() != t.LocalTrack {
			panic(fmt.Sprintf("importer: matched track %q (#%d) is not part of raw album %q", t.LocalTrack, t.LocalIndex, raw.Name))
		}
		songs = append(songs, &model.Song{
			Title:      t.CatalogTrack,
			LocalPath:  rawSong.SourcePath(),
			AlbumName:  album.Name,
			ArtistName: album.ArtistName,
			Album:      album,
		})
	}
	return album, songs
}

// commit deduplicates, relocates and persists an accepted album, then tags
// the library files.
func (imp *Importer) commit(ctx context.Context, album *model.Album, songs []*model.Song) (Outcome, error) {
	if imp.Lock != nil {
		if err := imp.Lock.Lock(ctx); err != nil {
			return OutcomeFailed, err
		}
		defer func() {
			if err := imp.Lock.Unlock(); err != nil {
				imp.Logger.Warn("Failed to release library lock: %v", err)
			}
		}()
	}

	id, found, err := imp.Store.AlbumID(ctx, album)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrDedupLookup, err)
	}
	if found {
		album.ID = id
		imp.Logger.Info("Album %s already in library with id %d", album.Name, id)
		return OutcomeDuplicate, nil
	}

	imp.Logger.Info("Adding %d songs for %s to library", len(songs), album.Name)
	rel, err := imp.Relocator.Relocate(songs)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrRelocation, err)
	}

	if err := imp.Store.AddAlbumAndSongs(ctx, album, songs); err != nil {
		if rbErr := rel.Rollback(); rbErr != nil {
			imp.Logger.Error("Could not remove relocated files for %s: %v", album.Name, rbErr)
		}
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// Tag only committed files; a rollback must return sources untouched.
	if imp.Tagger != nil {
		for i, song := range songs {
			if err := imp.Tagger.Tag(song, i+1); err != nil {
				imp.Logger.Warn("%v", err)
			}
		}
	}
	return OutcomeImported, nil
}
