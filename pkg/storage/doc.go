// Package storage persists canonical profile documents for the cache.
//
// Three backends implement Store:
//   - MemoryStore keeps records in a map guarded by a read-write mutex
//   - SQLiteStore uses an embedded database (modernc.org/sqlite, WAL mode)
//   - PostgresStore uses a pgx connection pool and can be shared by instances
//
// The SQL backends migrate themselves on open with goose, from the files
// embedded under migrations/. Records are keyed by the lowercased handle and
// expiry is checked at read time; PurgeExpired reclaims space.
//
// Usage:
//
//	store, err := storage.Open(ctx, cfg.Cache, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	profile, err := store.Get(ctx, "natgeo", time.Now())
package storage
