package catalog

import "slices"

// Extension is one extension row as stored in the catalog.
type Extension struct {
	ID          int64    `json:"id" db:"id" yaml:"id"`
	Name        string   `json:"name" db:"name" yaml:"name"`
	URL         string   `json:"url,omitempty" db:"url" yaml:"url"`
	Users       int64    `json:"users" db:"users" yaml:"users"`
	Rating      *float64 `json:"rating" db:"rating" yaml:"rating"`
	RatingVotes int64    `json:"rating_votes" db:"rating_votes" yaml:"rating_votes"`
	Languages   string   `json:"languages" db:"languages" yaml:"languages"`
}

// HasRating reports whether the extension carries a rating.
func (e *Extension) HasRating() bool {
	return e.Rating != nil
}

// RatingValue returns the rating, or 0 when absent.
func (e *Extension) RatingValue() float64 {
	if e.Rating == nil {
		return 0
	}
	return *e.Rating
}

// Category is a node of the category taxonomy.
type Category struct {
	ID   int64  `json:"id" db:"id" yaml:"id"`
	Name string `json:"name" db:"name" yaml:"name"`
}

// Link ties an extension to a category.
type Link struct {
	CategoryID  int64 `json:"category_id" db:"category_id"`
	ExtensionID int64 `json:"extension_id" db:"extension_id"`
}

// Snapshot is a read-only view of the whole catalog. Every slice is ordered
// by identity ascending.
type Snapshot struct {
	Extensions []Extension
	Categories []Category
	Links      []Link
}

// Index holds lookups derived from a Snapshot.
type Index struct {
	Extensions map[int64]*Extension
	Categories map[int64]*Category
	// Members maps a category id to its extension ids in ascending order.
	Members map[int64][]int64
}

// Index builds lookups over the snapshot. Links whose endpoints are missing
// from the snapshot are ignored.
func (s *Snapshot) Index() *Index {
	idx := &Index{
		Extensions: make(map[int64]*Extension, len(s.Extensions)),
		Categories: make(map[int64]*Category, len(s.Categories)),
		Members:    make(map[int64][]int64, len(s.Categories)),
	}
	for i := range s.Extensions {
		idx.Extensions[s.Extensions[i].ID] = &s.Extensions[i]
	}
	for i := range s.Categories {
		idx.Categories[s.Categories[i].ID] = &s.Categories[i]
	}

	seen := make(map[Link]bool, len(s.Links))
	for _, l := range s.Links {
		if seen[l] {
			continue
		}
		if _, ok := idx.Extensions[l.ExtensionID]; !ok {
			continue
		}
		if _, ok := idx.Categories[l.CategoryID]; !ok {
			continue
		}
		seen[l] = true
		idx.Members[l.CategoryID] = append(idx.Members[l.CategoryID], l.ExtensionID)
	}
	for id := range idx.Members {
		slices.Sort(idx.Members[id])
	}
	return idx
}
