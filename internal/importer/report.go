package importer

import (
	"fmt"

	"mptreasury/internal/model"
)

// Outcome is the terminal state of one album's import.
type Outcome int

const (
	OutcomeImported Outcome = iota
	OutcomeDuplicate
	OutcomeNoMatch
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeDuplicate:
		return "already imported"
	case OutcomeNoMatch:
		return "no candidate accepted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// AlbumResult describes what happened to one raw album.
type AlbumResult struct {
	Path      string
	RawName   string
	RawArtist string
	Outcome   Outcome
	Score     float64
	AlbumID   int64
	Album     *model.Album
	Songs     []*model.Song
	Err       error
}

func (r AlbumResult) fail(err error) AlbumResult {
	r.Outcome = OutcomeFailed
	r.Err = err
	return r
}

// Report collects the results of one ImportFolder call.
type Report struct {
	Albums []AlbumResult
}

func (r *Report) add(result AlbumResult) {
	r.Albums = append(r.Albums, result)
}

// Count returns how many albums ended with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, a := range r.Albums {
		if a.Outcome == o {
			n++
		}
	}
	return n
}

// Failed reports whether any album ended in an error.
func (r *Report) Failed() bool {
	return r.Count(OutcomeFailed) > 0
}

// Summary is a one-line description of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d imported, %d already imported, %d unmatched, %d failed",
		r.Count(OutcomeImported), r.Count(OutcomeDuplicate), r.Count(OutcomeNoMatch), r.Count(OutcomeFailed))
}
