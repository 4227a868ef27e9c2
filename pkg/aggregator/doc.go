// Package aggregator is the cache-backed pipeline behind every profile read.
//
// For a handle it looks the profile up in the cache; on a miss it runs the
// profile-details and posts calls concurrently, extracts the canonical record,
// derives analytics, persists it and serves it as fresh. An empty details
// result means the profile does not exist.
//
// Persisting is fatal on the single-profile path and only logged and counted
// on the comparison path, where the fetched data is still served.
//
// Usage:
//
//	agg := aggregator.New(apifyClient, cacheService, cfg, log, m)
//
//	result, err := agg.Profile(ctx, "natgeo")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Source, result.Profile.FollowersCount)
package aggregator
