// Package catalog defines how album candidates are looked up in external
// metadata catalogs.
//
// Implementations live in internal/provider. The interfaces are defined here,
// next to the importer that consumes them.
package catalog

import (
	"context"

	"mptreasury/internal/model"
)

// Searcher looks up releases by album and artist name.
type Searcher interface {
	Name() string
	Search(ctx context.Context, album, artist string) (CandidateSource, error)
}

// CandidateSource yields search results one page at a time, best matches first.
// An empty page means there are no more results.
type CandidateSource interface {
	NextPage(ctx context.Context) ([]model.CandidateRelease, error)
}

// PageFunc fetches one page of results. Pages are numbered from 1.
type PageFunc func(ctx context.Context, page int) ([]model.CandidateRelease, error)

// PagedSource turns a PageFunc into a CandidateSource.
type PagedSource struct {
	fetch PageFunc
	page  int
	done  bool
}

// NewPagedSource creates a source that starts at page 1.
func NewPagedSource(fetch PageFunc) *PagedSource {
	return &PagedSource{fetch: fetch}
}

func (s *PagedSource) NextPage(ctx context.Context) ([]model.CandidateRelease, error) {
	if s.done {
		return nil, nil
	}
	s.page++
	results, err := s.fetch(ctx, s.page)
	if err != nil {
		s.page--
		return nil, err
	}
	if len(results) == 0 {
		s.done = true
	}
	return results, nil
}

// StaticSource serves pages that are already known.
type StaticSource struct {
	pages [][]model.CandidateRelease
}

// NewStaticSource creates a source returning the given pages in order.
func NewStaticSource(pages ...[]model.CandidateRelease) *StaticSource {
	return &StaticSource{pages: pages}
}

func (s *StaticSource) NextPage(_ context.Context) ([]model.CandidateRelease, error) {
	if len(s.pages) == 0 {
		return nil, nil
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}
