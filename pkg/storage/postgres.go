package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"instalytics/pkg/models"
)

// PostgresStore keeps profiles in a shared Postgres database
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres migrates the database at dsn and opens a connection pool
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty DSN")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse DSN: %w", err)
	}

	// goose needs database/sql; the pool is used for everything else.
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	err = migrate(ctx, goose.DialectPostgres, "postgres", db)
	db.Close()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Get returns the record if it is still valid at now
func (s *PostgresStore) Get(ctx context.Context, handle string, now time.Time) (*models.Profile, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM profiles WHERE handle = $1 AND expires_at > $2`,
		normalize(handle), now,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", handle, err)
	}
	return decodeDocument(doc)
}

// Upsert inserts the profile or replaces the existing row for its handle
func (s *PostgresStore) Upsert(ctx context.Context, profile *models.Profile) error {
	p := profile.Clone()
	p.Handle = normalize(p.Handle)

	doc, err := encodeDocument(p)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO profiles (handle, full_name, followers_count, avatar_url, verified, last_fetched, expires_at, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (handle) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			followers_count = EXCLUDED.followers_count,
			avatar_url = EXCLUDED.avatar_url,
			verified = EXCLUDED.verified,
			last_fetched = EXCLUDED.last_fetched,
			expires_at = EXCLUDED.expires_at,
			document = EXCLUDED.document`,
		p.Handle, p.FullName, p.FollowersCount, p.ProfilePicURL, p.Verified,
		p.LastFetched, p.ExpiresAt, string(doc),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", p.Handle, err)
	}
	return nil
}

// List returns summaries sorted by follower count, highest first
func (s *PostgresStore) List(ctx context.Context, limit int) ([]models.ProfileSummary, error) {
	var limitArg interface{}
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT handle, full_name, followers_count, avatar_url, verified, last_fetched
		FROM profiles
		ORDER BY followers_count DESC, handle ASC
		LIMIT $1`, limitArg)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	summaries := []models.ProfileSummary{}
	for rows.Next() {
		var sum models.ProfileSummary
		if err := rows.Scan(&sum.Handle, &sum.FullName, &sum.FollowersCount, &sum.ProfilePicURL, &sum.Verified, &sum.LastFetched); err != nil {
			return nil, fmt.Errorf("postgres: list scan: %w", err)
		}
		sum.LastFetched = sum.LastFetched.UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return summaries, nil
}

// Delete removes the row and reports whether one existed
func (s *PostgresStore) Delete(ctx context.Context, handle string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE handle = $1`, normalize(handle))
	if err != nil {
		return false, fmt.Errorf("postgres: delete %s: %w", handle, err)
	}
	return tag.RowsAffected() > 0, nil
}

// PurgeExpired deletes rows whose window closed at or before now
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks a pooled connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
