package search

import (
	"sort"

	"github.com/kailas-cloud/mongomap/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges vector and text results via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// Documents are matched by _id; the vector copy of a document wins when both lists have it.
func fuseRRF(vector, text []result.Result, limit int) []result.Result {
	type scored struct {
		res   result.Result
		score float64
		order int
	}

	merged := make(map[string]*scored, len(vector)+len(text))
	add := func(list []result.Result) {
		for rank, r := range list {
			s := 1.0 / float64(rrfK+rank+1)
			if existing, ok := merged[r.Key()]; ok {
				existing.score += s
				continue
			}
			merged[r.Key()] = &scored{res: r, score: s, order: len(merged)}
		}
	}
	add(vector)
	add(text)

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}
	// Ties keep first-seen order so results are deterministic.
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})

	if len(all) > limit {
		all = all[:limit]
	}
	results := make([]result.Result, len(all))
	for i, s := range all {
		results[i] = s.res.WithScore(s.score)
	}
	return results
}
