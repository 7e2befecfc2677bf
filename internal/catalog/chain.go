package catalog

import (
	"context"
	"errors"
	"fmt"

	"mptreasury/internal/logger"
	"mptreasury/internal/model"
)

// Chain tries multiple searchers in order and uses the first one whose first
// page is non-empty.
type Chain struct {
	searchers []Searcher
	logger    *logger.Logger
}

// NewChain creates a Chain that queries searchers in order.
func NewChain(searchers []Searcher, log *logger.Logger) *Chain {
	return &Chain{searchers: searchers, logger: log}
}

func (c *Chain) Name() string { return "chain" }

// Search returns the source of the first searcher with results. When every
// searcher fails the errors are joined; when some merely found nothing an
// empty source is returned.
func (c *Chain) Search(ctx context.Context, album, artist string) (CandidateSource, error) {
	var errs []error
	for _, s := range c.searchers {
		src, err := s.Search(ctx, album, artist)
		if err != nil {
			c.logger.Debug("catalog %s failed: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		first, err := src.NextPage(ctx)
		if err != nil {
			c.logger.Debug("catalog %s failed: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if len(first) > 0 {
			c.logger.Debug("catalog %s returned %d candidates", s.Name(), len(first))
			return &prefetched{first: first, rest: src}, nil
		}
		c.logger.Debug("catalog %s found nothing for %q by %q", s.Name(), album, artist)
	}

	if len(errs) > 0 && len(errs) == len(c.searchers) {
		return nil, errors.Join(errs...)
	}
	return NewStaticSource(), nil
}

// prefetched replays a page read while probing, then continues with the source.
type prefetched struct {
	first []model.CandidateRelease
	rest  CandidateSource
	used  bool
}

func (p *prefetched) NextPage(ctx context.Context) ([]model.CandidateRelease, error) {
	if !p.used {
		p.used = true
		return p.first, nil
	}
	return p.rest.NextPage(ctx)
}
