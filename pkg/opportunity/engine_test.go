package opportunity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/extradar/pkg/catalog"
)

type staticSource struct {
	snap *catalog.Snapshot
	err  error
}

func (s staticSource) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	return s.snap, s.err
}

// largeSnapshot spreads n extensions over three categories; every fifth
// extension also joins a second category.
func largeSnapshot(n int) *catalog.Snapshot {
	snap := &catalog.Snapshot{
		Categories: []catalog.Category{{ID: 1, Name: "Productivity"}, {ID: 2, Name: "Developer"}, {ID: 3, Name: "Shopping"}, {ID: 4, Name: "Unused"}},
	}
	for i := 1; i <= n; i++ {
		r := float64(i%21) / 4
		e := catalog.Extension{
			ID:          int64(i),
			Name:        fmt.Sprintf("ext-%03d", i),
			Users:       int64(i*i*37) % 100000,
			Rating:      &r,
			RatingVotes: int64(i*13) % 400,
			Languages:   "en",
		}
		if i%7 == 0 {
			e.Rating = nil
		}
		snap.Extensions = append(snap.Extensions, e)
		cat := int64(i%3 + 1)
		snap.Links = append(snap.Links, catalog.Link{CategoryID: cat, ExtensionID: int64(i)})
		if i%5 == 0 {
			snap.Links = append(snap.Links, catalog.Link{CategoryID: cat%3 + 1, ExtensionID: int64(i)})
		}
	}
	return snap
}

func smallSnapshot() *catalog.Snapshot {
	return &catalog.Snapshot{
		Extensions: []catalog.Extension{
			{ID: 1, Name: "Tab Saver", Users: 120000, Rating: rating(4.8), RatingVotes: 3000, Languages: "en"},
			{ID: 2, Name: "Tab Groups", Users: 50000, Rating: rating(2.1), RatingVotes: 400, Languages: "en,de"},
			{ID: 3, Name: "Dark Reader", Users: 900000, Rating: rating(4.5), RatingVotes: 9000, Languages: "en"},
			{ID: 4, Name: "Coupon Finder", Users: 7, Rating: rating(3.0), RatingVotes: 0, Languages: "fr"},
			{ID: 5, Name: "Unrated", Users: 5000, Languages: "en"},
		},
		Categories: []catalog.Category{{ID: 10, Name: "Tabs"}, {ID: 20, Name: "Appearance"}, {ID: 30, Name: "Shopping"}, {ID: 40, Name: "Nothing Rated"}},
		Links: []catalog.Link{
			{CategoryID: 10, ExtensionID: 1},
			{CategoryID: 10, ExtensionID: 2},
			{CategoryID: 20, ExtensionID: 3},
			{CategoryID: 20, ExtensionID: 1},
			{CategoryID: 30, ExtensionID: 4},
			{CategoryID: 40, ExtensionID: 5},
		},
	}
}

func newTestEngine(snap *catalog.Snapshot) *Engine {
	return NewEngine(staticSource{snap: snap}, DefaultConstants(), DefaultLimits(), nil)
}

func assertFiniteCandidates(t *testing.T, rows []Candidate) {
	t.Helper()
	for _, r := range rows {
		for _, v := range []float64{r.Score, r.RatingGap, r.DemandNorm, r.CompetitionNorm, r.ConfidenceNorm, r.GapNorm, r.GapEffective, r.CategoryAvgRating} {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite value in %+v", r)
		}
		require.GreaterOrEqual(t, r.RatingGap, 0.0)
		require.GreaterOrEqual(t, r.Score, 0.0)
		require.LessOrEqual(t, r.Score, 100.0+1e-9)
	}
}

func TestAnalyzeGapNeverNegative(t *testing.T) {
	a := Analyze(smallSnapshot(), DefaultCriteria(), DefaultConstants())
	require.NotEmpty(t, a.Candidates)
	assertFiniteCandidates(t, a.Candidates)

	for _, r := range a.Candidates {
		if r.Rating >= r.CategoryAvgRating {
			assert.Equal(t, 0.0, r.RatingGap, "extension %d", r.ExtensionID)
			assert.Equal(t, 0.0, r.GapEffective, "extension %d", r.ExtensionID)
		}
	}
}

func TestAnalyzeExcludesBeforeAggregation(t *testing.T) {
	c := DefaultCriteria()
	c.ExcludeTopPct = 25 // ceil(4 * 0.25) = 1 -> drops Dark Reader

	a := Analyze(smallSnapshot(), c, DefaultConstants())
	assert.Equal(t, []int64{1, 2, 4}, ids(a.Survivors))

	stats, ok := a.StatsFor(20)
	require.True(t, ok)
	assert.Equal(t, 1, stats.MemberCount)
	assert.Equal(t, int64(120000), stats.TotalUsers)

	want := GlobalAverage([]catalog.Extension{smallSnapshot().Extensions[0], smallSnapshot().Extensions[1]})
	assert.InDelta(t, want, a.GlobalAvgRating, 1e-12)
}

func TestAnalyzeEmptyPopulation(t *testing.T) {
	c := DefaultCriteria()
	c.MinUsers = 1 << 40

	a := Analyze(smallSnapshot(), c, DefaultConstants())
	assert.Empty(t, a.Survivors)
	assert.Empty(t, a.Candidates)
	assert.Equal(t, 0.0, a.GlobalAvgRating)
	assert.Equal(t, Distribution{}, a.Distribution)
}

func TestMarket(t *testing.T) {
	e := newTestEngine(smallSnapshot())

	view, err := e.Market(context.Background(), DefaultCriteria(), MarketQuery{})
	require.NoError(t, err)

	assert.Equal(t, MarketByTotalUsers, view.Sort)
	assert.Equal(t, Desc, view.Dir)
	require.Len(t, view.Rows, 3, "categories without surviving members are omitted")
	assert.Equal(t, []int64{20, 10, 30}, []int64{view.Rows[0].ID, view.Rows[1].ID, view.Rows[2].ID})
	assert.Equal(t, int64(1020000), view.Rows[0].TotalUsers)
	assert.Equal(t, 2, view.Rows[0].ExtensionCount)

	for _, r := range view.Rows {
		assert.GreaterOrEqual(t, r.UnderservedIndex, 0.0)
		assert.LessOrEqual(t, r.UnderservedIndex, 1.0)
	}
	// Shopping has no votes, so its average is exactly the global prior.
	assert.Equal(t, view.GlobalAvgRating, view.Rows[2].AvgRating)
}

func TestMarketUnknownSortFallsBack(t *testing.T) {
	e := newTestEngine(smallSnapshot())

	view, err := e.Market(context.Background(), DefaultCriteria(), MarketQuery{Sort: "nope", Dir: "nope"})
	require.NoError(t, err)
	assert.Equal(t, MarketByTotalUsers, view.Sort)
	assert.Equal(t, Desc, view.Dir)

	byName, err := e.Market(context.Background(), DefaultCriteria(), MarketQuery{Sort: "name"})
	require.NoError(t, err)
	assert.Equal(t, Asc, byName.Dir)
	assert.Equal(t, "Appearance", byName.Rows[0].Name)
}

func TestCategoryNotFound(t *testing.T) {
	e := newTestEngine(smallSnapshot())

	_, err := e.Category(context.Background(), 999, DefaultCriteria(), CategoryQuery{})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCategoryEmptyAfterFilter(t *testing.T) {
	e := newTestEngine(smallSnapshot())

	view, err := e.Category(context.Background(), 40, DefaultCriteria(), CategoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Nothing Rated", view.Category.Name)
	assert.Equal(t, 0, view.Summary.ExtensionCount)
	assert.Equal(t, view.Summary.GlobalAvgRating, view.Summary.AvgRating)
	assert.Empty(t, view.Rows)
	assert.Empty(t, view.Scatter)
	assert.Empty(t, view.UsersHistogram)
	assert.Len(t, view.RatingHistogram, 20)
}

func TestCategoryView(t *testing.T) {
	e := newTestEngine(smallSnapshot())

	view, err := e.Category(context.Background(), 10, DefaultCriteria(), CategoryQuery{Sort: "rating", Dir: "asc"})
	require.NoError(t, err)

	assert.Equal(t, "Tabs", view.Category.Name)
	assert.Equal(t, 2, view.Summary.ExtensionCount)
	assert.Equal(t, int64(170000), view.Summary.TotalUsers)
	assert.Equal(t, CategoryByRating, view.Sort)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, int64(2), view.Rows[0].ExtensionID)

	require.Len(t, view.Scatter, 2)
	assert.InDelta(t, math.Log1p(120000), view.Scatter[0].LogUsers, 1e-12)
	assert.Equal(t, int64(3000), view.Scatter[0].RatingVotes)

	// 50000 and 120000 users are 5 and 6 digits long.
	require.Len(t, view.UsersHistogram, 7)
	assert.Equal(t, 1, view.UsersHistogram[5].Count)
	assert.Equal(t, 1, view.UsersHistogram[6].Count)
}

func TestCategoryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(smallSnapshot())
	_, err := e.Category(ctx, 10, DefaultCriteria(), CategoryQuery{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpportunitiesPageIsSliceOfBubbles(t *testing.T) {
	e := newTestEngine(largeSnapshot(300))

	view, err := e.Opportunities(context.Background(), DefaultCriteria(), OpportunityQuery{Limit: 100, Page: 2, PageSize: 20})
	require.NoError(t, err)

	require.Len(t, view.Bubbles, 100)
	assert.Equal(t, 100, view.Total)
	assert.Equal(t, Page{Offset: 20, Size: 20}, view.Page)
	assert.Equal(t, view.Bubbles[20:40], view.Rows)
	assertFiniteCandidates(t, view.Bubbles)

	for i := 1; i < len(view.Bubbles); i++ {
		assert.GreaterOrEqual(t, view.Bubbles[i-1].Score, view.Bubbles[i].Score)
	}
}

func TestOpportunitiesLimitClamped(t *testing.T) {
	e := NewEngine(staticSource{snap: largeSnapshot(300)}, DefaultConstants(), Limits{MaxLimit: 50}, nil)

	view, err := e.Opportunities(context.Background(), DefaultCriteria(), OpportunityQuery{Limit: 10000, Page: 99})
	require.NoError(t, err)
	assert.Equal(t, 50, view.Limit)
	assert.Len(t, view.Bubbles, 50)
	assert.Empty(t, view.Rows)
}

func TestOpportunitiesDeterministic(t *testing.T) {
	snap := largeSnapshot(250)
	criteria := Criteria{MinUsers: 10, RatingMin: 0.5, RatingMax: 4.5, ExcludeTopPct: 5}
	q := OpportunityQuery{Sort: "users", Limit: 120, Page: 3, PageSize: 25}

	first, err := newTestEngine(snap).Opportunities(context.Background(), criteria, q)
	require.NoError(t, err)
	second, err := newTestEngine(snap).Opportunities(context.Background(), criteria, q)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestOpportunitiesSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	e := NewEngine(staticSource{err: boom}, DefaultConstants(), DefaultLimits(), nil)

	_, err := e.Opportunities(context.Background(), DefaultCriteria(), OpportunityQuery{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load snapshot")
}

func TestOpportunitiesEmptySnapshot(t *testing.T) {
	e := newTestEngine(&catalog.Snapshot{})

	view, err := e.Opportunities(context.Background(), DefaultCriteria(), OpportunityQuery{})
	require.NoError(t, err)
	assert.Empty(t, view.Bubbles)
	assert.Empty(t, view.Rows)
	assert.Equal(t, 100, view.Limit)
}
