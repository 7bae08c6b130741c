package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/extradar/pkg/catalog"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Counts summarizes the catalog size.
type Counts struct {
	Extensions      int `db:"extensions" json:"extensions"`
	RatedExtensions int `db:"rated_extensions" json:"rated_extensions"`
	Categories      int `db:"categories" json:"categories"`
	Links           int `db:"links" json:"links"`
}

// Store is the catalog persistence interface.
type Store interface {
	UpsertExtension(ctx context.Context, e *catalog.Extension) error
	UpsertCategory(ctx context.Context, c *catalog.Category) error
	Link(ctx context.Context, categoryID, extensionID int64) error
	DeleteExtension(ctx context.Context, id int64) error
	DeleteCategory(ctx context.Context, id int64) error

	GetExtension(ctx context.Context, id int64) (*catalog.Extension, error)
	GetCategory(ctx context.Context, id int64) (*catalog.Category, error)
	Counts(ctx context.Context) (Counts, error)

	// Snapshot reads every extension, category and link in one transaction.
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)

	// Import writes a whole dataset in one transaction.
	Import(ctx context.Context, ds *catalog.Dataset) (Counts, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertExtension(ctx context.Context, e *catalog.Extension) error {
	return upsertExtension(ctx, s.db, e)
}

func (s *SQLiteStore) UpsertCategory(ctx context.Context, c *catalog.Category) error {
	return upsertCategory(ctx, s.db, c)
}

func (s *SQLiteStore) Link(ctx context.Context, categoryID, extensionID int64) error {
	return link(ctx, s.db, categoryID, extensionID)
}

func (s *SQLiteStore) DeleteExtension(ctx context.Context, id int64) error {
	return deleteRow(ctx, s.db, "extensions", id)
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, id int64) error {
	return deleteRow(ctx, s.db, "categories", id)
}

func (s *SQLiteStore) GetExtension(ctx context.Context, id int64) (*catalog.Extension, error) {
	var e catalog.Extension
	err := s.db.GetContext(ctx, &e, "SELECT * FROM extensions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get extension %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get extension %d: %w", id, err)
	}
	return &e, nil
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	var c catalog.Category
	err := s.db.GetContext(ctx, &c, "SELECT * FROM categories WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &c, nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	return counts(ctx, s.db)
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	var snap catalog.Snapshot
	if err := tx.SelectContext(ctx, &snap.Extensions, "SELECT * FROM extensions ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select extensions: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Categories, "SELECT * FROM categories ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Links,
		"SELECT category_id, extension_id FROM category_extensions ORDER BY category_id, extension_id"); err != nil {
		return nil, fmt.Errorf("select links: %w", err)
	}
	return &snap, nil
}

func (s *SQLiteStore) Import(ctx context.Context, ds *catalog.Dataset) (Counts, error) {
	if err := ds.Validate(); err != nil {
		return Counts{}, fmt.Errorf("validate dataset: %w", err)
	}
	snap := ds.Snapshot()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for i := range snap.Categories {
		if err := upsertCategory(ctx, tx, &snap.Categories[i]); err != nil {
			return Counts{}, err
		}
	}
	for i := range snap.Extensions {
		if err := upsertExtension(ctx, tx, &snap.Extensions[i]); err != nil {
			return Counts{}, err
		}
	}
	for _, l := range snap.Links {
		if err := link(ctx, tx, l.CategoryID, l.ExtensionID); err != nil {
			return Counts{}, err
		}
	}

	c, err := counts(ctx, tx)
	if err != nil {
		return Counts{}, err
	}
	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit import: %w", err)
	}
	return c, nil
}

func upsertExtension(ctx context.Context, db sqlx.ExecerContext, e *catalog.Extension) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO extensions (id, name, url, users, rating, rating_votes, languages)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			users = excluded.users,
			rating = excluded.rating,
			rating_votes = excluded.rating_votes,
			languages = excluded.languages
	`, e.ID, e.Name, e.URL, e.Users, e.Rating, e.RatingVotes, e.Languages)
	if err != nil {
		return fmt.Errorf("upsert extension %d: %w", e.ID, err)
	}
	return nil
}

func upsertCategory(ctx context.Context, db sqlx.ExecerContext, c *catalog.Category) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO categories (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, c.ID, c.Name)
	if err != nil {
		return fmt.Errorf("upsert category %d: %w", c.ID, err)
	}
	return nil
}

func link(ctx context.Context, db sqlx.ExecerContext, categoryID, extensionID int64) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO category_extensions (category_id, extension_id) VALUES (?, ?)",
		categoryID, extensionID)
	if err != nil {
		return fmt.Errorf("link category %d to extension %d: %w", categoryID, extensionID, err)
	}
	return nil
}

func deleteRow(ctx context.Context, db sqlx.ExecerContext, table string, id int64) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

func counts(ctx context.Context, db sqlx.QueryerContext) (Counts, error) {
	var c Counts
	err := sqlx.GetContext(ctx, db, &c, `
		SELECT
			(SELECT COUNT(*) FROM extensions) AS extensions,
			(SELECT COUNT(*) FROM extensions WHERE rating IS NOT NULL) AS rated_extensions,
			(SELECT COUNT(*) FROM categories) AS categories,
			(SELECT COUNT(*) FROM category_extensions) AS links
	`)
	if err != nil {
		return Counts{}, fmt.Errorf("count catalog: %w", err)
	}
	return c, nil
}
