package opportunity

import (
	"math"
	"sort"
	"strings"

	"github.com/elonfeng/extradar/pkg/catalog"
)

const (
	maxRating        = 5.0
	maxExcludeTopPct = 50
)

// Criteria is the user-supplied record filter.
type Criteria struct {
	MinUsers      int64   `json:"min_users"`
	MaxUsers      *int64  `json:"max_users,omitempty"`
	RatingMin     float64 `json:"rating_min"`
	RatingMax     float64 `json:"rating_max"`
	ExcludeTopPct int     `json:"exclude_top_pct"`
	Language      string  `json:"lang,omitempty"`
	Name          string  `json:"ext_name,omitempty"`
}

// DefaultCriteria matches every rated extension.
func DefaultCriteria() Criteria {
	return Criteria{RatingMax: maxRating}
}

// Normalize clamps the criteria into their valid ranges. An upper user
// bound below the lower bound is dropped; an inverted rating range resets
// to the full [0,5] range.
func (c Criteria) Normalize() Criteria {
	if c.MinUsers < 0 {
		c.MinUsers = 0
	}
	if c.MaxUsers != nil && *c.MaxUsers < c.MinUsers {
		c.MaxUsers = nil
	}

	c.RatingMin = clampRating(c.RatingMin, 0)
	c.RatingMax = clampRating(c.RatingMax, maxRating)
	if c.RatingMin > c.RatingMax {
		c.RatingMin, c.RatingMax = 0, maxRating
	}

	if c.ExcludeTopPct < 0 {
		c.ExcludeTopPct = 0
	}
	if c.ExcludeTopPct > maxExcludeTopPct {
		c.ExcludeTopPct = maxExcludeTopPct
	}

	c.Language = strings.TrimSpace(c.Language)
	c.Name = strings.TrimSpace(c.Name)
	return c
}

func clampRating(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return clamp(v, 0, maxRating)
}

// Match reports whether a single extension passes the criteria. The
// criteria are expected to be normalized.
func (c Criteria) Match(e *catalog.Extension) bool {
	if e.Rating == nil {
		return false
	}
	if e.Users < c.MinUsers {
		return false
	}
	if c.MaxUsers != nil && e.Users > *c.MaxUsers {
		return false
	}
	if r := *e.Rating; r < c.RatingMin || r > c.RatingMax {
		return false
	}
	if !containsFold(e.Languages, c.Language) {
		return false
	}
	return containsFold(e.Name, c.Name)
}

func containsFold(text, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(sub))
}

// Filter returns the extensions that pass the criteria, preserving input
// order. Unrated extensions never pass.
func Filter(exts []catalog.Extension, c Criteria) []catalog.Extension {
	c = c.Normalize()
	out := make([]catalog.Extension, 0, len(exts))
	for i := range exts {
		if c.Match(&exts[i]) {
			out = append(out, exts[i])
		}
	}
	return out
}

// ExcludeTop drops the ceil(n*pct/100) most-used extensions (ties broken by
// id ascending) and returns the rest ordered by id.
func ExcludeTop(exts []catalog.Extension, pct int) []catalog.Extension {
	out := make([]catalog.Extension, len(exts))
	copy(out, exts)

	if pct > maxExcludeTopPct {
		pct = maxExcludeTopPct
	}
	if pct > 0 && len(out) > 0 {
		sort.Slice(out, func(i, j int) bool {
			if out[i].Users != out[j].Users {
				return out[i].Users > out[j].Users
			}
			return out[i].ID < out[j].ID
		})
		drop := (len(out)*pct + 99) / 100
		out = out[drop:]
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
