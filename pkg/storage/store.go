package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"instalytics/pkg/config"
	"instalytics/pkg/logger"
	"instalytics/pkg/models"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// Store persists one canonical profile document per lowercase handle.
//
// Get returns (nil, nil) when the handle is missing or its record expired at
// or before now. Upsert writes the profile exactly as given; stamping the
// cache window is the caller's job.
type Store interface {
	Get(ctx context.Context, handle string, now time.Time) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	List(ctx context.Context, limit int) ([]models.ProfileSummary, error)
	Delete(ctx context.Context, handle string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and applies pending migrations
func Open(ctx context.Context, cfg config.CacheConfig, log logger.Logger) (Store, error) {
	driver := strings.ToLower(cfg.Driver)

	log.InfoWithFields("Opening profile store", map[string]interface{}{
		"driver": driver,
	})

	switch driver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverSQLite, "":
		s, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// migrate runs every embedded migration for the dialect against db
func migrate(ctx context.Context, dialect goose.Dialect, dir string, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

func normalize(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

func encodeDocument(p *models.Profile) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile %s: %w", p.Handle, err)
	}
	return data, nil
}

func decodeDocument(data []byte) (*models.Profile, error) {
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile document: %w", err)
	}
	return &p, nil
}
