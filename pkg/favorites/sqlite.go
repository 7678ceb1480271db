package favorites

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps favorites in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates if needed) the database at path.
// ":memory:" gives a throwaway in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection: SQLite serializes writers anyway and :memory: is per connection
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragma := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, stmt := range pragma {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply pragma: %w", err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS favorites (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT NOT NULL DEFAULT '',
	saved_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_favorites_saved_at ON favorites(saved_at);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Upsert implements Store. Updating an existing favorite keeps its SavedAt.
func (s *SQLiteStore) Upsert(ctx context.Context, record Record) error {
	savedAt := record.SavedAt
	if savedAt.IsZero() {
		savedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO favorites (id, title, description, thumbnail_url, saved_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	thumbnail_url = excluded.thumbnail_url
`, record.ID, record.Title, record.Description, record.ThumbnailURL, savedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert favorite %d: %w", record.ID, err)
	}
	return nil
}

// Delete implements Store. Deleting a missing favorite returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete favorite %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete favorite %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements Store. Most recently saved first.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, description, thumbnail_url, saved_at
FROM favorites
ORDER BY saved_at DESC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			savedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.ThumbnailURL, &savedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		r.SavedAt = time.UnixMilli(savedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return records, nil
}

// Exists implements Store.
func (s *SQLiteStore) Exists(ctx context.Context, id int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM favorites WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup favorite %d: %w", id, err)
	}
	return true, nil
}
