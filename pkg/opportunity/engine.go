package opportunity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/extradar/pkg/catalog"
)

// ErrCategoryNotFound is returned when a category id is not in the catalog.
var ErrCategoryNotFound = errors.New("category not found")

// SnapshotSource provides the catalog snapshot each view is computed from.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// Limits bounds page sizes and the opportunities population.
type Limits struct {
	PageSize     int `yaml:"page_size" json:"page_size"`
	MaxPageSize  int `yaml:"max_page_size" json:"max_page_size"`
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`
}

// DefaultLimits returns the stock pagination bounds.
func DefaultLimits() Limits {
	return Limits{PageSize: 20, MaxPageSize: 100, DefaultLimit: 100, MaxLimit: 500}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.PageSize <= 0 {
		l.PageSize = d.PageSize
	}
	if l.MaxPageSize < l.PageSize {
		l.MaxPageSize = max(d.MaxPageSize, l.PageSize)
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = d.MaxLimit
	}
	if l.DefaultLimit <= 0 {
		l.DefaultLimit = d.DefaultLimit
	}
	if l.DefaultLimit > l.MaxLimit {
		l.DefaultLimit = l.MaxLimit
	}
	return l
}

// Engine computes the analytical views. It holds no per-request state; every
// call loads a fresh snapshot and recomputes from it.
type Engine struct {
	source SnapshotSource
	consts Constants
	limits Limits
	logger *slog.Logger
}

// NewEngine creates a new scoring engine.
func NewEngine(src SnapshotSource, consts Constants, limits Limits, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		source: src,
		consts: consts.WithDefaults(),
		limits: limits.withDefaults(),
		logger: logger,
	}
}

// Constants returns the scoring configuration in use.
func (e *Engine) Constants() Constants { return e.consts }

// Limits returns the pagination bounds in use.
func (e *Engine) Limits() Limits { return e.limits }

// Analyze loads the current snapshot and runs the pipeline over it.
func (e *Engine) Analyze(ctx context.Context, criteria Criteria) (*Analysis, error) {
	start := time.Now()
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := Analyze(snap, criteria, e.consts)
	e.logger.Debug("analysis computed",
		"extensions", len(snap.Extensions),
		"survivors", len(a.Survivors),
		"candidates", len(a.Candidates),
		"global_avg_rating", a.GlobalAvgRating,
		"elapsed", time.Since(start))
	return a, nil
}

// MarketQuery selects ordering and page of the market view.
type MarketQuery struct {
	Sort     string
	Dir      string
	Page     int
	PageSize int
}

// MarketRow is one category of the market view.
type MarketRow struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	ExtensionCount   int     `json:"extension_count"`
	TotalUsers       int64   `json:"total_users"`
	AvgRating        float64 `json:"avg_rating"`
	UnderservedIndex float64 `json:"underserved_index"`
}

// MarketView ranks categories by demand and quality.
type MarketView struct {
	Criteria        Criteria    `json:"criteria"`
	GlobalAvgRating float64     `json:"global_avg_rating"`
	Sort            MarketSort  `json:"sort"`
	Dir             Direction   `json:"dir"`
	Page            Page        `json:"page"`
	Total           int         `json:"total"`
	Rows            []MarketRow `json:"rows"`
}

// Market returns categories with at least one surviving extension.
func (e *Engine) Market(ctx context.Context, criteria Criteria, q MarketQuery) (*MarketView, error) {
	a, err := e.Analyze(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return MarketOf(a, q, e.limits), nil
}

// MarketOf builds the market view from a finished analysis.
func MarketOf(a *Analysis, q MarketQuery, limits Limits) *MarketView {
	limits = limits.withDefaults()
	rows := make([]MarketRow, 0, len(a.Categories))
	for _, cs := range a.Categories {
		if cs.MemberCount == 0 {
			continue
		}
		rows = append(rows, MarketRow{
			ID:               cs.ID,
			Name:             cs.Name,
			ExtensionCount:   cs.MemberCount,
			TotalUsers:       cs.TotalUsers,
			AvgRating:        Finite(cs.AvgRating),
			UnderservedIndex: UnderservedIndex(float64(cs.TotalUsers), a.Distribution.CategoryUsersCeiling, cs.AvgRating),
		})
	}

	key := ParseMarketSort(q.Sort)
	dir := ParseDirection(q.Dir, key.DefaultDirection())
	SortMarket(rows, key, dir)

	page := PageNumber(q.Page, q.PageSize, limits.PageSize, limits.MaxPageSize)
	return &MarketView{
		Criteria:        a.Criteria,
		GlobalAvgRating: Finite(a.GlobalAvgRating),
		Sort:            key,
		Dir:             dir,
		Page:            page,
		Total:           len(rows),
		Rows:            Paginate(rows, page),
	}
}

// CategoryQuery selects ordering and page of the category explorer table.
type CategoryQuery struct {
	Sort     string
	Dir      string
	Page     int
	PageSize int
}

// CategorySummary describes one category under the current filter.
type CategorySummary struct {
	ExtensionCount  int     `json:"extension_count"`
	TotalUsers      int64   `json:"total_users"`
	AvgRating       float64 `json:"avg_rating"`
	GlobalAvgRating float64 `json:"global_avg_rating"`
}

// ScatterPoint is one extension plotted as demand against rating.
type ScatterPoint struct {
	ExtensionID int64   `json:"extension_id"`
	Name        string  `json:"name"`
	LogUsers    float64 `json:"log_users"`
	Rating      float64 `json:"rating"`
	RatingVotes int64   `json:"rating_votes"`
	RatingGap   float64 `json:"rating_gap"`
}

// CategoryView is the category explorer: summary, scatter, histograms and
// a ranked table of the category's extensions.
type CategoryView struct {
	Category        catalog.Category `json:"category"`
	Criteria        Criteria         `json:"criteria"`
	Summary         CategorySummary  `json:"summary"`
	Scatter         []ScatterPoint   `json:"scatter"`
	UsersHistogram  []Bucket         `json:"users_histogram"`
	RatingHistogram []Bucket         `json:"rating_histogram"`
	Sort            CategorySort     `json:"sort"`
	Dir             Direction        `json:"dir"`
	Page            Page             `json:"page"`
	Total           int              `json:"total"`
	Rows            []Candidate      `json:"rows"`
}

// Category returns the explorer view of one category. An id missing from
// the catalog yields ErrCategoryNotFound; a category whose extensions were
// all filtered out yields an empty view.
func (e *Engine) Category(ctx context.Context, id int64, criteria Criteria, q CategoryQuery) (*CategoryView, error) {
	a, err := e.Analyze(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return CategoryOf(ctx, a, id, q, e.limits)
}

// CategoryOf builds the explorer view from a finished analysis. The view's
// parts are independent reads of the analysis and are computed concurrently.
func CategoryOf(ctx context.Context, a *Analysis, id int64, q CategoryQuery, limits Limits) (*CategoryView, error) {
	if !a.HasCategory(id) {
		return nil, fmt.Errorf("category %d: %w", id, ErrCategoryNotFound)
	}
	limits = limits.withDefaults()
	stats, _ := a.StatsFor(id)
	members := a.CandidatesIn(id)

	key := ParseCategorySort(q.Sort)
	dir := ParseDirection(q.Dir, Desc)
	page := PageNumber(q.Page, q.PageSize, limits.PageSize, limits.MaxPageSize)

	view := &CategoryView{
		Category: catalog.Category{ID: id, Name: stats.Name},
		Criteria: a.Criteria,
		Sort:     key,
		Dir:      dir,
		Page:     page,
		Total:    len(members),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		view.Summary = CategorySummary{
			ExtensionCount:  stats.MemberCount,
			TotalUsers:      stats.TotalUsers,
			AvgRating:       Finite(stats.AvgRating),
			GlobalAvgRating: Finite(a.GlobalAvgRating),
		}
		return nil
	})
	g.Go(func() error {
		points := make([]ScatterPoint, 0, len(members))
		for i := range members {
			m := &members[i]
			points = append(points, ScatterPoint{
				ExtensionID: m.ExtensionID,
				Name:        m.Name,
				LogUsers:    Finite(math.Log1p(float64(m.Users))),
				Rating:      m.Rating,
				RatingVotes: m.RatingVotes,
				RatingGap:   m.RatingGap,
			})
		}
		view.Scatter = points
		return gctx.Err()
	})
	g.Go(func() error {
		users := make([]int64, len(members))
		ratings := make([]float64, len(members))
		for i := range members {
			users[i] = members[i].Users
			ratings[i] = members[i].Rating
		}
		view.UsersHistogram = UsersHistogram(users)
		view.RatingHistogram = RatingHistogram(ratings)
		return gctx.Err()
	})
	g.Go(func() error {
		rows := make([]Candidate, len(members))
		copy(rows, members)
		SortCategoryRows(rows, key, dir)
		view.Rows = Paginate(rows, page)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// OpportunityQuery selects ordering, population bound and page of the
// opportunities view.
type OpportunityQuery struct {
	Sort     string
	Dir      string
	Limit    int
	Page     int
	PageSize int
}

// OpportunityView is the cross-category leaderboard. Rows is always a slice
// of Bubbles.
type OpportunityView struct {
	Criteria Criteria        `json:"criteria"`
	Sort     OpportunitySort `json:"sort"`
	Dir      Direction       `json:"dir"`
	Limit    int             `json:"limit"`
	Page     Page            `json:"page"`
	Total    int             `json:"total"`
	Bubbles  []Candidate     `json:"bubbles"`
	Rows     []Candidate     `json:"rows"`
}

// Opportunities ranks every candidate row across categories.
func (e *Engine) Opportunities(ctx context.Context, criteria Criteria, q OpportunityQuery) (*OpportunityView, error) {
	a, err := e.Analyze(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return OpportunitiesOf(a, q, e.limits), nil
}

// OpportunitiesOf builds the leaderboard from a finished analysis. The rows
// are ordered once, bounded by the limit, and the page is cut from that same
// bounded list.
func OpportunitiesOf(a *Analysis, q OpportunityQuery, limits Limits) *OpportunityView {
	limits = limits.withDefaults()

	limit := q.Limit
	if limit <= 0 {
		limit = limits.DefaultLimit
	}
	if limit > limits.MaxLimit {
		limit = limits.MaxLimit
	}

	key := ParseOpportunitySort(q.Sort)
	dir := ParseDirection(q.Dir, Desc)

	ordered := make([]Candidate, len(a.Candidates))
	copy(ordered, a.Candidates)
	SortCandidates(ordered, key, dir)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	page := PageNumber(q.Page, q.PageSize, limits.PageSize, limits.MaxPageSize)
	return &OpportunityView{
		Criteria: a.Criteria,
		Sort:     key,
		Dir:      dir,
		Limit:    limit,
		Page:     page,
		Total:    len(ordered),
		Bubbles:  ordered,
		Rows:     Paginate(ordered, page),
	}
}
