package dispatch

import "github.com/ppriyankuu/kvstore/internal/index"

func toScoredHits(results []index.Result) []ScoredHit {
	hits := make([]ScoredHit, len(results))
	for i, r := range results {
		hits[i] = ScoredHit{Key: r.Key, Score: r.Score}
	}
	return hits
}
