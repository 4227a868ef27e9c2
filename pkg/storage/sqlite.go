package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"instalytics/pkg/models"
)

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// SQLiteStore keeps profiles in an embedded SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Pragmas are per connection and :memory: is per connection too.
	db.SetMaxOpenConns(1)

	for _, p := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if err := migrate(ctx, goose.DialectSQLite3, "sqlite", db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the record if it is still valid at now
func (s *SQLiteStore) Get(ctx context.Context, handle string, now time.Time) (*models.Profile, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM profiles WHERE handle = ? AND expires_at > ?`,
		normalize(handle), now.UnixNano(),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", handle, err)
	}
	return decodeDocument(doc)
}

// Upsert inserts the profile or replaces the existing row for its handle
func (s *SQLiteStore) Upsert(ctx context.Context, profile *models.Profile) error {
	p := profile.Clone()
	p.Handle = normalize(p.Handle)

	doc, err := encodeDocument(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (handle, full_name, followers_count, avatar_url, verified, last_fetched, expires_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (handle) DO UPDATE SET
			full_name = excluded.full_name,
			followers_count = excluded.followers_count,
			avatar_url = excluded.avatar_url,
			verified = excluded.verified,
			last_fetched = excluded.last_fetched,
			expires_at = excluded.expires_at,
			document = excluded.document`,
		p.Handle, p.FullName, p.FollowersCount, p.ProfilePicURL, p.Verified,
		p.LastFetched.UnixNano(), p.ExpiresAt.UnixNano(), string(doc),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert %s: %w", p.Handle, err)
	}
	return nil
}

// List returns summaries sorted by follower count, highest first
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]models.ProfileSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT handle, full_name, followers_count, avatar_url, verified, last_fetched
		FROM profiles
		ORDER BY followers_count DESC, handle ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	summaries := []models.ProfileSummary{}
	for rows.Next() {
		var (
			sum         models.ProfileSummary
			lastFetched int64
		)
		if err := rows.Scan(&sum.Handle, &sum.FullName, &sum.FollowersCount, &sum.ProfilePicURL, &sum.Verified, &lastFetched); err != nil {
			return nil, fmt.Errorf("sqlite: list scan: %w", err)
		}
		sum.LastFetched = time.Unix(0, lastFetched).UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return summaries, nil
}

// Delete removes the row and reports whether one existed
func (s *SQLiteStore) Delete(ctx context.Context, handle string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE handle = ?`, normalize(handle))
	if err != nil {
		return false, fmt.Errorf("sqlite: delete %s: %w", handle, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: delete %s: %w", handle, err)
	}
	return n > 0, nil
}

// PurgeExpired deletes rows whose window closed at or before now
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
