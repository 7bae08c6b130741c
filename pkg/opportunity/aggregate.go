package opportunity

import (
	"sort"

	"github.com/elonfeng/extradar/pkg/catalog"
)

// GlobalAverage returns the vote-weighted mean rating over extensions with
// at least one vote, or 0 when there is no vote mass.
func GlobalAverage(exts []catalog.Extension) float64 {
	var sum, weight float64
	for i := range exts {
		e := &exts[i]
		if e.Rating == nil || e.RatingVotes <= 0 {
			continue
		}
		sum += *e.Rating * float64(e.RatingVotes)
		weight += float64(e.RatingVotes)
	}
	if weight == 0 {
		return 0
	}
	return Finite(sum / weight)
}

// SmoothedAverage blends a group's weighted mean rating with the global
// prior. With no vote mass it returns the prior unchanged.
func SmoothedAverage(weightedSum, weightSum, global, k float64) float64 {
	if weightSum <= 0 {
		return global
	}
	if k < 0 {
		k = 0
	}
	own := weightedSum / weightSum
	total := weightSum + k
	return Finite((weightSum/total)*own + (k/total)*global)
}

// CategoryStats are the per-category aggregates over surviving extensions.
type CategoryStats struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	MemberCount int     `json:"extension_count"`
	TotalUsers  int64   `json:"total_users"`
	WeightedSum float64 `json:"-"`
	WeightSum   float64 `json:"-"`
	AvgRating   float64 `json:"avg_rating"`
}

// Aggregate computes stats for every category in the snapshot, in id order.
// Categories without surviving members get zero counts and the global
// average as their rating.
func Aggregate(idx *catalog.Index, survivors []catalog.Extension, global, k float64) []CategoryStats {
	alive := make(map[int64]*catalog.Extension, len(survivors))
	for i := range survivors {
		alive[survivors[i].ID] = &survivors[i]
	}

	ids := make([]int64, 0, len(idx.Categories))
	for id := range idx.Categories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]CategoryStats, 0, len(ids))
	for _, id := range ids {
		cs := CategoryStats{ID: id, Name: idx.Categories[id].Name}
		for _, extID := range idx.Members[id] {
			e, ok := alive[extID]
			if !ok {
				continue
			}
			cs.MemberCount++
			cs.TotalUsers += e.Users
			if e.Rating != nil && e.RatingVotes > 0 {
				cs.WeightedSum += *e.Rating * float64(e.RatingVotes)
				cs.WeightSum += float64(e.RatingVotes)
			}
		}
		cs.AvgRating = SmoothedAverage(cs.WeightedSum, cs.WeightSum, global, k)
		out = append(out, cs)
	}
	return out
}
