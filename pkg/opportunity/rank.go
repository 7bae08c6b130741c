package opportunity

import (
	"cmp"
	"sort"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection returns the direction named by s, or def when s is not
// recognized.
func ParseDirection(s string, def Direction) Direction {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Asc:
		return Asc
	case Desc:
		return Desc
	}
	return def
}

// OpportunitySort is a sort key of the opportunities view.
type OpportunitySort string

const (
	OpportunityByScore       OpportunitySort = "score"
	OpportunityByUsers       OpportunitySort = "users"
	OpportunityByRatingGap   OpportunitySort = "rating_gap"
	OpportunityByCompetition OpportunitySort = "competition_count"
)

// ParseOpportunitySort falls back to score for unknown keys.
func ParseOpportunitySort(s string) OpportunitySort {
	switch k := OpportunitySort(strings.ToLower(strings.TrimSpace(s))); k {
	case OpportunityByScore, OpportunityByUsers, OpportunityByRatingGap, OpportunityByCompetition:
		return k
	}
	return OpportunityByScore
}

// CategorySort is a sort key of the category explorer table.
type CategorySort string

const (
	CategoryByUsers       CategorySort = "users"
	CategoryByRating      CategorySort = "rating"
	CategoryByRatingGap   CategorySort = "rating_gap"
	CategoryByScore       CategorySort = "score"
	CategoryByCompetition CategorySort = "competition_count"
)

// ParseCategorySort falls back to users for unknown keys.
func ParseCategorySort(s string) CategorySort {
	switch k := CategorySort(strings.ToLower(strings.TrimSpace(s))); k {
	case CategoryByUsers, CategoryByRating, CategoryByRatingGap, CategoryByScore, CategoryByCompetition:
		return k
	}
	return CategoryByUsers
}

// MarketSort is a sort key of the market view.
type MarketSort string

const (
	MarketByTotalUsers  MarketSort = "total_users"
	MarketByCount       MarketSort = "extension_count"
	MarketByAvgRating   MarketSort = "avg_rating"
	MarketByUnderserved MarketSort = "underserved_index"
	MarketByName        MarketSort = "name"
)

// ParseMarketSort falls back to total_users for unknown keys.
func ParseMarketSort(s string) MarketSort {
	switch k := MarketSort(strings.ToLower(strings.TrimSpace(s))); k {
	case MarketByTotalUsers, MarketByCount, MarketByAvgRating, MarketByUnderserved, MarketByName:
		return k
	}
	return MarketByTotalUsers
}

// DefaultDirection is desc for every numeric key and asc for names.
func (k MarketSort) DefaultDirection() Direction {
	if k == MarketByName {
		return Asc
	}
	return Desc
}

func directed(c int, dir Direction) int {
	if dir == Asc {
		return c
	}
	return -c
}

// SortCandidates orders opportunity rows by key, then score desc, users
// desc, extension id asc and category id asc.
func SortCandidates(rows []Candidate, key OpportunitySort, dir Direction) {
	primary := func(a, b *Candidate) int {
		switch key {
		case OpportunityByUsers:
			return cmp.Compare(a.Users, b.Users)
		case OpportunityByRatingGap:
			return cmp.Compare(a.RatingGap, b.RatingGap)
		case OpportunityByCompetition:
			return cmp.Compare(a.CompetitionCount, b.CompetitionCount)
		default:
			return cmp.Compare(a.Score, b.Score)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if c := directed(primary(a, b), dir); c != 0 {
			return c < 0
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c < 0
		}
		if a.Users != b.Users {
			return a.Users > b.Users
		}
		if a.ExtensionID != b.ExtensionID {
			return a.ExtensionID < b.ExtensionID
		}
		return a.CategoryID < b.CategoryID
	})
}

// SortCategoryRows orders the rows of one category by key, then users desc
// and extension id asc.
func SortCategoryRows(rows []Candidate, key CategorySort, dir Direction) {
	primary := func(a, b *Candidate) int {
		switch key {
		case CategoryByRating:
			return cmp.Compare(a.Rating, b.Rating)
		case CategoryByRatingGap:
			return cmp.Compare(a.RatingGap, b.RatingGap)
		case CategoryByScore:
			return cmp.Compare(a.Score, b.Score)
		case CategoryByCompetition:
			return cmp.Compare(a.CompetitionCount, b.CompetitionCount)
		default:
			return cmp.Compare(a.Users, b.Users)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if c := directed(primary(a, b), dir); c != 0 {
			return c < 0
		}
		if a.Users != b.Users {
			return a.Users > b.Users
		}
		if a.ExtensionID != b.ExtensionID {
			return a.ExtensionID < b.ExtensionID
		}
		return a.CategoryID < b.CategoryID
	})
}

// SortMarket orders market rows by key, then category id asc.
func SortMarket(rows []MarketRow, key MarketSort, dir Direction) {
	primary := func(a, b *MarketRow) int {
		switch key {
		case MarketByCount:
			return cmp.Compare(a.ExtensionCount, b.ExtensionCount)
		case MarketByAvgRating:
			return cmp.Compare(a.AvgRating, b.AvgRating)
		case MarketByUnderserved:
			return cmp.Compare(a.UnderservedIndex, b.UnderservedIndex)
		case MarketByName:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		default:
			return cmp.Compare(a.TotalUsers, b.TotalUsers)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if c := directed(primary(a, b), dir); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}

// Page selects the half-open range [Offset, Offset+Size).
type Page struct {
	Offset int `json:"offset"`
	Size   int `json:"size"`
}

// PageNumber builds a Page from a 1-based page number. The size is clamped
// into [1, maxSize] with def used for non-positive sizes.
func PageNumber(number, size, def, maxSize int) Page {
	if def <= 0 {
		def = 20
	}
	if maxSize < def {
		maxSize = def
	}
	if size <= 0 {
		size = def
	}
	if size > maxSize {
		size = maxSize
	}
	if number < 1 {
		number = 1
	}
	return Page{Offset: (number - 1) * size, Size: size}
}

// Paginate returns the page slice of rows. Out-of-range offsets yield an
// empty, non-nil slice.
func Paginate[T any](rows []T, p Page) []T {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Size <= 0 || p.Offset >= len(rows) {
		return []T{}
	}
	end := p.Offset + p.Size
	if end > len(rows) || end < p.Offset {
		end = len(rows)
	}
	return rows[p.Offset:end]
}
