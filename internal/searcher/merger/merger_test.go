package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/executor"
)

func TestAggregateGroupsAndSorts(t *testing.T) {
	hits := []executor.Hit{
		{UnitID: "3-0", Score: 2.0},
		{UnitID: "3-1", Score: 1.0},
		{UnitID: "7-0", Score: 5.0},
	}

	pages, err := Aggregate(hits)
	require.NoError(t, err)
	assert.Equal(t, []PageResult{
		{Page: 7, Segments: []int{0}, Score: 5.0},
		{Page: 3, Segments: []int{0, 1}, Score: 3.0},
	}, pages)
}

func TestAggregateKeepsEncounterOrder(t *testing.T) {
	pages, err := Aggregate([]executor.Hit{
		{UnitID: "1-4", Score: 1},
		{UnitID: "1-2", Score: 1},
		{UnitID: "1-9", Score: 1},
	})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, []int{4, 2, 9}, pages[0].Segments)
	assert.Equal(t, 3.0, pages[0].Score)
}

func TestAggregateTieBreaksByAscendingPage(t *testing.T) {
	pages, err := Aggregate([]executor.Hit{
		{UnitID: "9-0", Score: 1.5},
		{UnitID: "2-0", Score: 1.5},
		{UnitID: "5-1", Score: 1.5},
		{UnitID: "4-0", Score: 2.0},
	})
	require.NoError(t, err)

	order := make([]int, len(pages))
	for i, p := range pages {
		order[i] = p.Page
	}
	assert.Equal(t, []int{4, 2, 5, 9}, order)
}

func TestAggregateRoundsPageScores(t *testing.T) {
	pages, err := Aggregate([]executor.Hit{
		{UnitID: "1-0", Score: 0.1},
		{UnitID: "1-1", Score: 0.2},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.3, pages[0].Score)
}

func TestAggregateEmpty(t *testing.T) {
	pages, err := Aggregate(nil)
	require.NoError(t, err)
	assert.NotNil(t, pages)
	assert.Empty(t, pages)
}

func TestAggregateMalformedID(t *testing.T) {
	for _, id := range []string{"7", "x-1", "3-y", ""} {
		_, err := Aggregate([]executor.Hit{{UnitID: id, Score: 1}})
		assert.Error(t, err, id)
	}
}
