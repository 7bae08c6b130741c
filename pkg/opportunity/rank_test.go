package opportunity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func candidateKeys(rows []Candidate) [][2]int64 {
	out := make([][2]int64, len(rows))
	for i := range rows {
		out[i] = [2]int64{rows[i].ExtensionID, rows[i].CategoryID}
	}
	return out
}

func TestParseSortFallbacks(t *testing.T) {
	assert.Equal(t, OpportunityByScore, ParseOpportunitySort("bogus"))
	assert.Equal(t, OpportunityByScore, ParseOpportunitySort("rating"))
	assert.Equal(t, OpportunityByRatingGap, ParseOpportunitySort(" Rating_Gap "))
	assert.Equal(t, CategoryByUsers, ParseCategorySort(""))
	assert.Equal(t, CategoryByRating, ParseCategorySort("rating"))
	assert.Equal(t, MarketByTotalUsers, ParseMarketSort("score"))
	assert.Equal(t, MarketByUnderserved, ParseMarketSort("underserved_index"))

	assert.Equal(t, Desc, ParseDirection("sideways", Desc))
	assert.Equal(t, Asc, ParseDirection("ASC", Desc))
	assert.Equal(t, Asc, MarketByName.DefaultDirection())
	assert.Equal(t, Desc, MarketByAvgRating.DefaultDirection())
}

func TestSortCandidatesTieBreaks(t *testing.T) {
	rows := []Candidate{
		{ExtensionID: 3, CategoryID: 1, Score: 50, Users: 10},
		{ExtensionID: 1, CategoryID: 2, Score: 50, Users: 10},
		{ExtensionID: 1, CategoryID: 1, Score: 50, Users: 10},
		{ExtensionID: 2, CategoryID: 1, Score: 50, Users: 20},
		{ExtensionID: 9, CategoryID: 1, Score: 70, Users: 1},
	}

	SortCandidates(rows, OpportunityByScore, Desc)
	assert.Equal(t, [][2]int64{{9, 1}, {2, 1}, {1, 1}, {1, 2}, {3, 1}}, candidateKeys(rows))

	SortCandidates(rows, OpportunityByScore, Asc)
	assert.Equal(t, [][2]int64{{2, 1}, {1, 1}, {1, 2}, {3, 1}, {9, 1}}, candidateKeys(rows))
}

func TestSortCandidatesByKeys(t *testing.T) {
	rows := []Candidate{
		{ExtensionID: 1, CategoryID: 1, Users: 5, RatingGap: 0.1, CompetitionCount: 9},
		{ExtensionID: 2, CategoryID: 1, Users: 50, RatingGap: 0.9, CompetitionCount: 3},
		{ExtensionID: 3, CategoryID: 1, Users: 500, RatingGap: 0.5, CompetitionCount: 6},
	}

	SortCandidates(rows, OpportunityByUsers, Desc)
	assert.Equal(t, int64(3), rows[0].ExtensionID)

	SortCandidates(rows, OpportunityByRatingGap, Desc)
	assert.Equal(t, int64(2), rows[0].ExtensionID)

	SortCandidates(rows, OpportunityByCompetition, Asc)
	assert.Equal(t, [][2]int64{{2, 1}, {3, 1}, {1, 1}}, candidateKeys(rows))
}

func TestSortCategoryRows(t *testing.T) {
	rows := []Candidate{
		{ExtensionID: 1, Users: 5, Rating: 4.5},
		{ExtensionID: 2, Users: 50, Rating: 3.0},
		{ExtensionID: 3, Users: 50, Rating: 4.5},
	}

	SortCategoryRows(rows, CategoryByUsers, Desc)
	assert.Equal(t, [][2]int64{{2, 0}, {3, 0}, {1, 0}}, candidateKeys(rows))

	SortCategoryRows(rows, CategoryByRating, Desc)
	assert.Equal(t, [][2]int64{{3, 0}, {1, 0}, {2, 0}}, candidateKeys(rows))
}

func TestSortMarket(t *testing.T) {
	rows := []MarketRow{
		{ID: 3, Name: "b", TotalUsers: 100},
		{ID: 1, Name: "C", TotalUsers: 100},
		{ID: 2, Name: "a", TotalUsers: 500},
	}

	SortMarket(rows, MarketByTotalUsers, Desc)
	assert.Equal(t, []int64{2, 1, 3}, []int64{rows[0].ID, rows[1].ID, rows[2].ID})

	SortMarket(rows, MarketByName, Asc)
	assert.Equal(t, []int64{2, 3, 1}, []int64{rows[0].ID, rows[1].ID, rows[2].ID})
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, Page{Offset: 20, Size: 20}, PageNumber(2, 20, 20, 100))
	assert.Equal(t, Page{Offset: 0, Size: 20}, PageNumber(0, 0, 20, 100))
	assert.Equal(t, Page{Offset: 200, Size: 100}, PageNumber(3, 1000, 20, 100))
	assert.Equal(t, Page{Offset: 0, Size: 20}, PageNumber(-4, -1, 0, 0))
}

func TestPaginate(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{3, 4}, Paginate(rows, Page{Offset: 2, Size: 2}))
	assert.Equal(t, []int{5}, Paginate(rows, Page{Offset: 4, Size: 2}))
	assert.Equal(t, []int{}, Paginate(rows, Page{Offset: 5, Size: 2}))
	assert.Equal(t, []int{}, Paginate(rows, Page{Offset: 0, Size: 0}))
	assert.Equal(t, []int{1, 2}, Paginate(rows, Page{Offset: -3, Size: 2}))
}
