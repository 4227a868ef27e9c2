package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"instalytics/pkg/models"
)

// MemoryStore keeps profiles in a map guarded by a read-write mutex
type MemoryStore struct {
	profiles map[string]*models.Profile
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.Profile),
	}
}

// Get returns a copy of the record if it is still valid at now
func (m *MemoryStore) Get(ctx context.Context, handle string, now time.Time) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[normalize(handle)]
	if !ok || !p.Valid(now) {
		return nil, nil
	}
	return p.Clone(), nil
}

// Upsert replaces the whole record for the profile's handle
func (m *MemoryStore) Upsert(ctx context.Context, profile *models.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := profile.Clone()
	stored.Handle = normalize(profile.Handle)

	m.mu.Lock()
	m.profiles[stored.Handle] = stored
	m.mu.Unlock()

	return nil
}

// List returns summaries sorted by follower count, highest first
func (m *MemoryStore) List(ctx context.Context, limit int) ([]models.ProfileSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	summaries := make([]models.ProfileSummary, 0, len(m.profiles))
	for _, p := range m.profiles {
		summaries = append(summaries, p.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].FollowersCount != summaries[j].FollowersCount {
			return summaries[i].FollowersCount > summaries[j].FollowersCount
		}
		return summaries[i].Handle < summaries[j].Handle
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Delete removes the record and reports whether one existed
func (m *MemoryStore) Delete(ctx context.Context, handle string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := normalize(handle)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[key]; !ok {
		return false, nil
	}
	delete(m.profiles, key)
	return true, nil
}

// PurgeExpired drops every record whose window closed at or before now
func (m *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for key, p := range m.profiles {
		if !p.Valid(now) {
			delete(m.profiles, key)
			purged++
		}
	}
	return purged, nil
}

// Ping always succeeds for the in-process store
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored records, expired ones included
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}
