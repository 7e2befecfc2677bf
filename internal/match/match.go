// Package match pairs local track titles with catalog track titles and scores
// how well a catalog release explains a local album.
package match

import (
	"errors"
	"fmt"
	"math"

	"github.com/hbollon/go-edlib"

	"mptreasury/internal/model"
)

// ErrMatchScoring is returned when a match cannot be scored.
var ErrMatchScoring = errors.New("cannot score match")

// Penalty applied per unmatched track on either side.
const unmatchedPenalty = 0.2

// DefaultMinimumScore is the acceptance threshold used when none is configured.
const DefaultMinimumScore = 80

// PartialRatio returns the best similarity (0..100) between the shorter
// string and every same-length window of the longer one.
func PartialRatio(a, b string) int {
	if a == b {
		return 100
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	shorter, longer := ra, rb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	s := string(shorter)
	best := 0.0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		window := string(longer[start : start+len(shorter)])
		r := ratio(s, window, len(shorter))
		if r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return int(math.RoundToEven(best * 100))
}

// ratio of two strings of n runes each.
func ratio(a, b string, n int) float64 {
	if a == b {
		return 1
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(2*n)
}

// MatchTracks greedily pairs each catalog title, in catalog order, with the
// most similar local title still unmatched. Ties go to the earliest local
// title. It stops when local titles run out and returns the triplets with
// the number of local titles left over.
func MatchTracks(local, catalog []string) ([]model.MatchTriplet, int) {
	// Indices into local, so duplicate titles are consumed one file at a time.
	pool := make([]int, len(local))
	for i := range pool {
		pool[i] = i
	}

	var triplets []model.MatchTriplet
	for _, catalogTitle := range catalog {
		if len(pool) == 0 {
			break
		}
		bestIdx, bestScore := 0, -1
		for i, localIdx := range pool {
			if score := PartialRatio(catalogTitle, local[localIdx]); score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		triplets = append(triplets, model.MatchTriplet{
			LocalTrack:   local[pool[bestIdx]],
			LocalIndex:   pool[bestIdx],
			CatalogTrack: catalogTitle,
			Similarity:   bestScore,
		})
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}
	return triplets, len(pool)
}

// ScoreMatch turns triplets into a score: the mean similarity, scaled down by
// 20% for every unmatched local track and every unmatched catalog track.
// The result is not clamped and may be negative.
func ScoreMatch(triplets []model.MatchTriplet, numLocalRemaining, numCatalogUnmatched int) (float64, error) {
	if len(triplets) == 0 {
		return 0, fmt.Errorf("%w: no matched tracks", ErrMatchScoring)
	}
	sum := 0
	for _, t := range triplets {
		sum += t.Similarity
	}
	mean := float64(sum) / float64(len(triplets))
	return mean *
		(1 - unmatchedPenalty*float64(numLocalRemaining)) *
		(1 - unmatchedPenalty*float64(numCatalogUnmatched)), nil
}

// Result is the outcome of evaluating one candidate against a raw album.
type Result struct {
	Triplets       []model.MatchTriplet
	LocalRemaining int
	Score          float64
}

// Evaluate matches a raw album's titles against a candidate's matchable
// tracks and scores the pairing.
func Evaluate(local []string, candidate model.CandidateRelease) (Result, error) {
	catalog := candidate.MatchableTitles()
	if len(local) == 0 || len(catalog) == 0 {
		return Result{}, fmt.Errorf("%w: %d local and %d catalog tracks", ErrMatchScoring, len(local), len(catalog))
	}

	triplets, remaining := MatchTracks(local, catalog)
	score, err := ScoreMatch(triplets, remaining, len(catalog)-len(triplets))
	if err != nil {
		return Result{}, err
	}
	return Result{Triplets: triplets, LocalRemaining: remaining, Score: score}, nil
}

// Policy decides whether a score is good enough to accept a candidate.
type Policy struct {
	MinimumScore float64
}

// Accepts reports whether score reaches the minimum.
func (p Policy) Accepts(score float64) bool {
	return score >= p.MinimumScore
}
