package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sahilmfuzzy "github.com/sahilm/fuzzy"

	"github.com/codelens-dev/codelens/internal/store"
)

// fuzzyPrefilterThreshold is the chunk-count above which a candidate
// prefilter runs before exact ratio scoring, per the fuzzy scan cost design
// note: loading and scoring every chunk name is O(N), fine for typical
// repos, but a prefilter keeps large ones cheap.
const fuzzyPrefilterThreshold = 2000

func (s *Searcher) searchFuzzy(ctx context.Context, query string, limit int) ([]Result, error) {
	chunks, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks for fuzzy search: %w", err)
	}

	named := make([]store.StoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Name != "" {
			named = append(named, c)
		}
	}

	candidates := named
	if len(named) > fuzzyPrefilterThreshold {
		candidates = fuzzyPrefilter(query, named)
	}

	lowerQuery := strings.ToLower(query)
	type scored struct {
		c     store.StoredChunk
		ratio float64
	}
	matches := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ratio := gestaltRatio(lowerQuery, strings.ToLower(c.Name))
		if ratio > 0.5 {
			matches = append(matches, scored{c, ratio})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].ratio != matches[j].ratio {
			return matches[i].ratio > matches[j].ratio
		}
		return matches[i].c.ID < matches[j].c.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]Result, len(matches))
	for i, m := range matches {
		out[i] = chunkToResult(m.c, m.ratio)
	}
	return out, nil
}

// fuzzyPrefilter narrows a large chunk set to candidates sahilm/fuzzy
// considers plausible, before the exact Ratcliff/Obershelp scan ranks them.
func fuzzyPrefilter(query string, chunks []store.StoredChunk) []store.StoredChunk {
	names := make([]string, len(chunks))
	for i, c := range chunks {
		names[i] = c.Name
	}
	found := sahilmfuzzy.Find(query, names)
	out := make([]store.StoredChunk, len(found))
	for i, m := range found {
		out[i] = chunks[m.Index]
	}
	return out
}

func chunkToResult(c store.StoredChunk, score float64) Result {
	return Result{
		ID:        c.ID,
		Text:      c.Text,
		FilePath:  c.FilePath,
		FileName:  c.FileName,
		Name:      c.Name,
		Kind:      c.Kind,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Score:     score,
	}
}
