package opportunity

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks (PERCENTILE_CONT). Empty input
// yields 0. The input slice is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if math.IsNaN(p) {
		p = 0
	}
	p = clamp(p, 0, 1)

	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		sorted = append(sorted, Finite(v))
	}
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return Finite(sorted[lo] + (sorted[hi]-sorted[lo])*frac)
}

// Distribution carries the percentile ceilings used for normalization.
type Distribution struct {
	UsersCeiling         float64 `json:"users_ceiling"`
	VotesCeiling         float64 `json:"votes_ceiling"`
	CompetitionCeiling   float64 `json:"competition_ceiling"`
	CategoryUsersCeiling float64 `json:"category_users_ceiling"`
	GapCap               float64 `json:"gap_cap"`
}

// Distribute computes the ceilings. Users and votes come from the surviving
// extensions, competition and category users from categories with at least
// one member, and the gap cap from the candidate rows.
func Distribute(a *Analysis, c Constants) Distribution {
	users := make([]float64, len(a.Survivors))
	votes := make([]float64, len(a.Survivors))
	for i := range a.Survivors {
		users[i] = float64(a.Survivors[i].Users)
		votes[i] = float64(a.Survivors[i].RatingVotes)
	}

	var competition, categoryUsers []float64
	for _, cs := range a.Categories {
		if cs.MemberCount == 0 {
			continue
		}
		competition = append(competition, float64(cs.MemberCount))
		categoryUsers = append(categoryUsers, float64(cs.TotalUsers))
	}

	gaps := make([]float64, len(a.Candidates))
	for i := range a.Candidates {
		gaps[i] = a.Candidates[i].RatingGap
	}

	return Distribution{
		UsersCeiling:         Percentile(users, c.DemandPercentile),
		VotesCeiling:         Percentile(votes, c.VotesPercentile),
		CompetitionCeiling:   Percentile(competition, c.CompetitionPercentile),
		CategoryUsersCeiling: Percentile(categoryUsers, c.DemandPercentile),
		GapCap:               Percentile(gaps, c.GapPercentile),
	}
}
