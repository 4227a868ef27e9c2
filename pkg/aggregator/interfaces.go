package aggregator

import (
	"context"

	"instalytics/pkg/instagram"
)

// Upstream defines the two independent scraping calls made on a cache miss
type Upstream interface {
	FetchProfileDetails(ctx context.Context, handle string) ([]instagram.RawProfile, error)
	FetchPosts(ctx context.Context, handle string) ([]instagram.RawPost, error)
}
