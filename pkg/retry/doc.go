// Package retry re-runs idempotent upstream requests that fail transiently.
//
// Network errors, upstream 5xx responses and upstream rate limiting are
// retried with exponential backoff; rate limiting backs off more slowly.
// Authentication, not-found, parsing and context errors are returned at once.
//
// Basic usage:
//
//	items, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([]Item, error) {
//		return client.fetch(ctx, url)
//	})
package retry
