package executor

import (
	"math"
	"sort"
)

func score(candidates map[string]struct{}, postingsPerTerm []termPostings, totalUnits int) []Hit {
	idfs := make([]float64, len(postingsPerTerm))
	for i, tp := range postingsPerTerm {
		idfs[i] = computeIDF(totalUnits, len(tp))
	}
	hits := make([]Hit, 0, len(candidates))
	for unitID := range candidates {
		var s float64
		for i, tp := range postingsPerTerm {
			s += float64(tp[unitID]) * idfs[i]
		}
		hits = append(hits, Hit{
			UnitID: unitID,
			Score:  math.Round(s*10000) / 10000,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].UnitID < hits[j].UnitID
	})
	return hits
}

// computeIDF is the smoothed inverse document frequency; it stays positive
// even when every unit holds the term.
func computeIDF(totalUnits int, docFreq int) float64 {
	return math.Log(float64(1+totalUnits)/float64(1+docFreq)) + 1
}
