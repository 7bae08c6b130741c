package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Dataset is the import document. Extensions are listed inline under each
// category they belong to; an extension that appears under several
// categories is stored once and linked to each of them. Extensions that
// belong to no category go under the top-level extensions key.
type Dataset struct {
	Categories []DatasetCategory `yaml:"categories" json:"categories"`
	Extensions []Extension       `yaml:"extensions" json:"extensions"`
}

// DatasetCategory is a category with its member extensions.
type DatasetCategory struct {
	ID         int64       `yaml:"id" json:"id"`
	Name       string      `yaml:"name" json:"name"`
	Extensions []Extension `yaml:"extensions" json:"extensions"`
}

// LoadDataset reads a YAML or JSON dataset from path.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("validate dataset %s: %w", path, err)
	}
	return &ds, nil
}

// Validate checks value ranges and that repeated extension definitions agree.
func (d *Dataset) Validate() error {
	var errs []error

	cats := make(map[int64]bool)
	for _, c := range d.Categories {
		if cats[c.ID] {
			errs = append(errs, fmt.Errorf("category %d: duplicate id", c.ID))
		}
		cats[c.ID] = true
	}

	exts := make(map[int64]Extension)
	check := func(e Extension) {
		if e.Users < 0 {
			errs = append(errs, fmt.Errorf("extension %d: negative users", e.ID))
		}
		if e.RatingVotes < 0 {
			errs = append(errs, fmt.Errorf("extension %d: negative rating_votes", e.ID))
		}
		if e.Rating != nil && (*e.Rating < 0 || *e.Rating > 5) {
			errs = append(errs, fmt.Errorf("extension %d: rating %.2f outside [0,5]", e.ID, *e.Rating))
		}
		if prev, ok := exts[e.ID]; ok && !sameExtension(prev, e) {
			errs = append(errs, fmt.Errorf("extension %d: conflicting definitions", e.ID))
			return
		}
		exts[e.ID] = e
	}
	for _, c := range d.Categories {
		for _, e := range c.Extensions {
			check(e)
		}
	}
	for _, e := range d.Extensions {
		check(e)
	}
	return errors.Join(errs...)
}

// Snapshot flattens the dataset into id-ordered catalog collections.
func (d *Dataset) Snapshot() *Snapshot {
	exts := make(map[int64]Extension)
	var snap Snapshot

	for _, c := range d.Categories {
		snap.Categories = append(snap.Categories, Category{ID: c.ID, Name: c.Name})
		for _, e := range c.Extensions {
			exts[e.ID] = e
			snap.Links = append(snap.Links, Link{CategoryID: c.ID, ExtensionID: e.ID})
		}
	}
	for _, e := range d.Extensions {
		exts[e.ID] = e
	}
	for _, e := range exts {
		snap.Extensions = append(snap.Extensions, e)
	}

	sort.Slice(snap.Extensions, func(i, j int) bool { return snap.Extensions[i].ID < snap.Extensions[j].ID })
	sort.Slice(snap.Categories, func(i, j int) bool { return snap.Categories[i].ID < snap.Categories[j].ID })
	sort.Slice(snap.Links, func(i, j int) bool {
		if snap.Links[i].CategoryID != snap.Links[j].CategoryID {
			return snap.Links[i].CategoryID < snap.Links[j].CategoryID
		}
		return snap.Links[i].ExtensionID < snap.Links[j].ExtensionID
	})
	return &snap
}

func sameExtension(a, b Extension) bool {
	if a.Name != b.Name || a.URL != b.URL || a.Users != b.Users ||
		a.RatingVotes != b.RatingVotes || a.Languages != b.Languages {
		return false
	}
	if (a.Rating == nil) != (b.Rating == nil) {
		return false
	}
	return a.Rating == nil || *a.Rating == *b.Rating
}
