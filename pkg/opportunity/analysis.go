package opportunity

import (
	"math"

	"github.com/elonfeng/extradar/pkg/catalog"
)

// Candidate is one surviving extension within one of its categories.
type Candidate struct {
	ExtensionID int64   `json:"extension_id"`
	Name        string  `json:"name"`
	URL         string  `json:"url,omitempty"`
	Users       int64   `json:"users"`
	Rating      float64 `json:"rating"`
	RatingVotes int64   `json:"rating_votes"`
	Languages   string  `json:"languages"`

	CategoryID        int64   `json:"category_id"`
	CategoryName      string  `json:"category_name"`
	CategoryAvgRating float64 `json:"category_avg_rating"`
	CompetitionCount  int     `json:"competition_count"`

	// RatingGap is how far the extension sits below its category average,
	// floored at zero.
	RatingGap float64 `json:"rating_gap"`

	Factors
	Score float64 `json:"score"`
}

// Analysis is the fully scored state of one snapshot under one filter.
type Analysis struct {
	Criteria        Criteria
	Constants       Constants
	Survivors       []catalog.Extension
	GlobalAvgRating float64
	Categories      []CategoryStats
	Distribution    Distribution
	Candidates      []Candidate

	index      *catalog.Index
	categoryAt map[int64]int
}

// Analyze runs filter, exclusion, aggregation, distribution and scoring over
// the snapshot. The snapshot is not modified.
func Analyze(snap *catalog.Snapshot, criteria Criteria, consts Constants) *Analysis {
	criteria = criteria.Normalize()
	consts = consts.WithDefaults()
	idx := snap.Index()

	a := &Analysis{
		Criteria:  criteria,
		Constants: consts,
		index:     idx,
	}

	a.Survivors = ExcludeTop(Filter(snap.Extensions, criteria), criteria.ExcludeTopPct)
	a.GlobalAvgRating = GlobalAverage(a.Survivors)
	a.Categories = Aggregate(idx, a.Survivors, a.GlobalAvgRating, consts.PriorWeight)

	a.categoryAt = make(map[int64]int, len(a.Categories))
	for i := range a.Categories {
		a.categoryAt[a.Categories[i].ID] = i
	}

	a.Candidates = buildCandidates(a)
	a.Distribution = Distribute(a, consts)

	for i := range a.Candidates {
		row := &a.Candidates[i]
		row.Factors = Normalize(row, a.Distribution)
		row.Score = Score(row.Factors, consts)
	}
	return a
}

// StatsFor returns the aggregate for a category id, including
// categories without surviving members.
func (a *Analysis) StatsFor(id int64) (CategoryStats, bool) {
	i, ok := a.categoryAt[id]
	if !ok {
		return CategoryStats{}, false
	}
	return a.Categories[i], true
}

// HasCategory reports whether the id exists in the underlying snapshot.
func (a *Analysis) HasCategory(id int64) bool {
	_, ok := a.index.Categories[id]
	return ok
}

// CandidatesIn returns the candidate rows of one category in extension id
// order.
func (a *Analysis) CandidatesIn(categoryID int64) []Candidate {
	var out []Candidate
	for i := range a.Candidates {
		if a.Candidates[i].CategoryID == categoryID {
			out = append(out, a.Candidates[i])
		}
	}
	return out
}

func buildCandidates(a *Analysis) []Candidate {
	alive := make(map[int64]*catalog.Extension, len(a.Survivors))
	for i := range a.Survivors {
		alive[a.Survivors[i].ID] = &a.Survivors[i]
	}

	var rows []Candidate
	for _, cs := range a.Categories {
		if cs.MemberCount == 0 {
			continue
		}
		for _, extID := range a.index.Members[cs.ID] {
			e, ok := alive[extID]
			if !ok {
				continue
			}
			rating := e.RatingValue()
			rows = append(rows, Candidate{
				ExtensionID:       e.ID,
				Name:              e.Name,
				URL:               e.URL,
				Users:             e.Users,
				Rating:            rating,
				RatingVotes:       e.RatingVotes,
				Languages:         e.Languages,
				CategoryID:        cs.ID,
				CategoryName:      cs.Name,
				CategoryAvgRating: cs.AvgRating,
				CompetitionCount:  cs.MemberCount,
				RatingGap:         Finite(math.Max(cs.AvgRating-rating, 0)),
			})
		}
	}
	return rows
}
