// Package pipeline wires configuration into a ready-to-run importer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mptreasury/internal/catalog"
	"mptreasury/internal/config"
	"mptreasury/internal/cue"
	"mptreasury/internal/importer"
	"mptreasury/internal/library"
	"mptreasury/internal/logger"
	"mptreasury/internal/provider/deezer"
	"mptreasury/internal/provider/discogs"
	"mptreasury/internal/provider/musicbrainz"
	"mptreasury/internal/rawalbum"
	"mptreasury/internal/remote"
	"mptreasury/internal/store"
)

// ErrNoRemote is returned when an upload is requested without remote_dir.
var ErrNoRemote = errors.New("remote_dir is not configured")

const searchPageSize = 10

// Pipeline owns the long-lived collaborators of one program run.
type Pipeline struct {
	Config   config.Config
	Store    *store.Store
	Importer *importer.Importer
	Uploader remote.Uploader
	logger   *logger.Logger
}

// Summary is what one RunImport call did.
type Summary struct {
	Report *importer.Report
	Upload remote.Result
}

// New opens the store and builds every collaborator from cfg.
func New(cfg config.Config, log *logger.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.Open(cfg.DBFile)
	if err != nil {
		return nil, err
	}
	log.Debug("Database: %s", st.Path())

	searcher, err := NewSearcher(cfg, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	splitter := cue.NewSplitter(cfg.SplitCommand, cfg.CacheDir, cfg.SplitTimeoutDuration(),
		cue.ExecRunner{Verbose: cfg.Verbose}, log)
	builder := rawalbum.NewBuilder(splitter, log)
	relocator := library.NewRelocator(cfg.LibraryDir, cfg.MoveFiles, log)

	imp := importer.New(builder, searcher, st, relocator, importer.Options{
		MinimumScore:     cfg.MinimumMatchScore,
		MaxGuessAttempts: cfg.MaxGuessAttempts,
		SearchTimeout:    cfg.SearchTimeoutDuration(),
	}, log)
	imp.Tagger = library.Tagger{}
	imp.Lock = library.NewLock(cfg.LibraryDir)

	p := &Pipeline{Config: cfg, Store: st, Importer: imp, logger: log}
	if cfg.RemoteDir != "" {
		p.Uploader = remote.NewDirUploader(cfg.RemoteDir)
	}
	return p, nil
}

// NewSearcher builds the catalog chain in the configured order.
func NewSearcher(cfg config.Config, log *logger.Logger) (*catalog.Chain, error) {
	var searchers []catalog.Searcher
	for _, name := range cfg.Catalogs {
		switch name {
		case config.CatalogDiscogs:
			searchers = append(searchers, discogs.New(cfg.DiscogsToken, searchPageSize))
		case config.CatalogMusicBrainz:
			searchers = append(searchers, musicbrainz.New(searchPageSize))
		case config.CatalogDeezer:
			searchers = append(searchers, deezer.New(searchPageSize))
		default:
			return nil, fmt.Errorf("unknown catalog %q", name)
		}
	}
	if len(searchers) == 0 {
		return nil, fmt.Errorf("no catalogs configured")
	}
	return catalog.NewChain(searchers, log), nil
}

// RunImport imports dir and, when upload is set, uploads every song that has
// no remote path yet.
func (p *Pipeline) RunImport(ctx context.Context, dir string, upload bool, hooks importer.Hooks) (*Summary, error) {
	if upload && p.Uploader == nil {
		return nil, ErrNoRemote
	}

	report, err := p.Importer.ImportFolder(ctx, dir, hooks)
	if err != nil {
		return nil, fmt.Errorf("import of %s failed: %w", dir, err)
	}
	p.logger.Info("=== %s ===", report.Summary())

	summary := &Summary{Report: report}
	if !upload {
		return summary, nil
	}

	pending, err := p.Store.SongsPendingUpload(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list songs pending upload: %w", err)
	}
	p.logger.Info("=== Uploading %d songs ===", len(pending))
	summary.Upload, err = remote.UploadSongs(ctx, p.Uploader, p.Store, pending, p.logger)
	if err != nil {
		return summary, err
	}
	if summary.Upload.Failed > 0 {
		p.logger.Warn("%d songs could not be uploaded", summary.Upload.Failed)
	}
	return summary, nil
}

// Close releases the store.
func (p *Pipeline) Close() error {
	return p.Store.Close()
}
