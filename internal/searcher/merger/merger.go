// Package merger groups unit hits by page into the ranked page list the
// document viewer consumes.
package merger

import (
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/executor"
)

// PageResult is one page of a search result. Segments keeps the order in
// which the page's hits were seen.
type PageResult struct {
	Page     int     `json:"page"`
	Segments []int   `json:"cindex"`
	Score    float64 `json:"score"`
}

// Aggregate sums hit scores per page, rounded to four decimals, and sorts
// pages by score, highest first. Pages with equal scores are ordered by ascending page number.
func Aggregate(hits []executor.Hit) ([]PageResult, error) {
	pages := make([]PageResult, 0)
	byPage := make(map[int]int)
	for _, hit := range hits {
		pageNum, segment, err := index.ParseUnitID(hit.UnitID)
		if err != nil {
			return nil, fmt.Errorf("aggregating hits: %w", err)
		}
		idx, seen := byPage[pageNum]
		if !seen {
			idx = len(pages)
			byPage[pageNum] = idx
			pages = append(pages, PageResult{Page: pageNum, Segments: make([]int, 0, 1)})
		}
		pages[idx].Score += hit.Score
		pages[idx].Segments = append(pages[idx].Segments, segment)
	}
	for i := range pages {
		pages[i].Score = math.Round(pages[i].Score*10000) / 10000
	}
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Score != pages[j].Score {
			return pages[i].Score > pages[j].Score
		}
		return pages[i].Page < pages[j].Page
	})
	return pages, nil
}
