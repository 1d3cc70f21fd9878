package retrieval

import (
	"sort"

	"github.com/talentbase/hrgraph/graphstore"
)

const rrfK = 60 // RRF constant (standard value from literature)

// fuseRRF implements Reciprocal Rank Fusion to combine vector and
// full-text result lists. Each list is ranked independently, then
// scores are combined using: score = sum(weight_i / (k + rank_i)).
func fuseRRF(vecResults, ftsResults []graphstore.ChunkRef, weightVec, weightFTS float64, maxResults int) []graphstore.ChunkRef {
	type fusedEntry struct {
		ref   graphstore.ChunkRef
		score float64
	}

	fused := make(map[string]*fusedEntry)

	for rank, r := range vecResults {
		entry, ok := fused[r.UID]
		if !ok {
			entry = &fusedEntry{ref: r}
			fused[r.UID] = entry
		}
		entry.score += weightVec / float64(rrfK+rank+1)
	}

	for rank, r := range ftsResults {
		entry, ok := fused[r.UID]
		if !ok {
			entry = &fusedEntry{ref: r}
			fused[r.UID] = entry
		}
		entry.score += weightFTS / float64(rrfK+rank+1)
	}

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	out := make([]graphstore.ChunkRef, len(entries))
	for i, e := range entries {
		out[i] = e.ref
		out[i].Score = e.score
	}
	return out
}
