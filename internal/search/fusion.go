package search

import "sort"

// rrfEntry accumulates one id's fused score and per-source rank.
type rrfEntry struct {
	id         string
	score      float64
	vectorRank int // 1-based, 0 if absent from the vector list
	ftsRank    int // 1-based, 0 if absent from the fts list
}

// rrfFuse combines two ranked id lists by Reciprocal Rank Fusion: each list
// contributes 1/(k+rank) per item, summed per id. The fusion is unweighted —
// bm25_weight only selects which mode runs, it never scales a list's
// contribution here. Ties break lexicographically by id for determinism.
func rrfFuse(vectorIDs, ftsIDs []string, k int) []rrfEntry {
	byID := make(map[string]*rrfEntry, len(vectorIDs)+len(ftsIDs))

	get := func(id string) *rrfEntry {
		e, ok := byID[id]
		if !ok {
			e = &rrfEntry{id: id}
			byID[id] = e
		}
		return e
	}

	for rank, id := range vectorIDs {
		e := get(id)
		e.vectorRank = rank + 1
		e.score += 1.0 / float64(k+rank+1)
	}
	for rank, id := range ftsIDs {
		e := get(id)
		e.ftsRank = rank + 1
		e.score += 1.0 / float64(k+rank+1)
	}

	out := make([]rrfEntry, 0, len(byID))
	for _, e := range byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	return out
}
