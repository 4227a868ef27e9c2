package response

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instalytics/pkg/models"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func profile(username string, followers int64, rate float64, posts int) *models.Profile {
	p := &models.Profile{
		Handle:         username,
		Username:       username,
		FullName:       "Full " + username,
		FollowersCount: followers,
		Analytics:      models.Analytics{EngagementRate: rate, AvgLikes: followers / 10, AvgComments: followers / 100},
		LastFetched:    now.Add(-time.Hour),
		ExpiresAt:      now.Add(7*24*time.Hour - time.Hour),
	}
	for i := 0; i < posts; i++ {
		p.Posts = append(p.Posts, models.Post{ShortCode: username + string(rune('a'+i)), DisplayURL: "d"})
	}
	return p
}

func TestProfileShape(t *testing.T) {
	p := profile("natgeo", 2_500_000, 1.2345, 2)
	p.Posts[0].VideoViewCount = 1500
	p.Posts[0].Caption = "hello"
	p.Analytics.AvgViews = 0
	p.Analytics.TotalEngagement = 440

	view := Profile(p, models.SourceFresh, now)

	assert.Equal(t, "2.5M", view.Profile.Followers)
	assert.Equal(t, int64(2_500_000), view.Profile.FollowersRaw)
	assert.Equal(t, "https://www.instagram.com/natgeo/", view.Profile.AccountURL)
	assert.Equal(t, "1.23%", view.Analytics.EngagementRate)
	assert.Equal(t, "440", view.Analytics.TotalEngagement)
	assert.Nil(t, view.Analytics.AvgViews)
	assert.Equal(t, 2, view.Analytics.PostsAnalyzed)
	require.Len(t, view.RecentPosts, 2)
	assert.Equal(t, "1.5K", *view.RecentPosts[0].Views)
	assert.Nil(t, view.RecentPosts[1].Views)
	assert.Equal(t, models.SourceFresh, view.Meta.DataSource)
	assert.Equal(t, p.ExpiresAt, view.Meta.CacheExpiry)
	assert.Equal(t, now, view.Meta.ScrapedAt)

	data, err := json.Marshal(view)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	analytics := raw["analytics"].(map[string]interface{})
	assert.Nil(t, analytics["avgViews"], "zero views serialize as null")
	assert.Equal(t, []interface{}{}, raw["hashtags"])
	prof := raw["profile"].(map[string]interface{})
	assert.Equal(t, []interface{}{}, prof["externalUrls"])
}

func TestPostsShape(t *testing.T) {
	p := profile("nasa", 10, 0, 3)
	view := Posts(p)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, "nasaa", view.Posts[0].ID, "id falls back to the short code")
}

func TestListingShape(t *testing.T) {
	view := Listing([]models.ProfileSummary{
		{Handle: "big", FullName: "Big", FollowersCount: 1500, Verified: true},
		{Handle: "small", FullName: "Small", FollowersCount: 3},
	})

	assert.Equal(t, 2, view.Count)
	assert.Equal(t, "big", view.Profiles[0].Username)
	assert.Equal(t, "1.5K", view.Profiles[0].Followers)
	assert.Equal(t, "3", view.Profiles[1].Followers)

	empty := Listing(nil)
	assert.NotNil(t, empty.Profiles)
	assert.Equal(t, 0, empty.Count)
}

func TestComparisonRankingTieBreak(t *testing.T) {
	results := []models.Result{
		{Profile: profile("first", 1000, 1, 1), Source: models.SourceCache},
		{Profile: profile("second", 1000, 1, 1), Source: models.SourceFresh},
		{Profile: profile("third", 1000, 1, 1), Source: models.SourceFresh},
	}

	view := Comparison(results, now)

	var order []string
	for _, e := range view.Rankings.MostFollowers {
		order = append(order, e.Username)
	}
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, []int{1, 2, 3}, []int{
		view.Rankings.MostFollowers[0].Rank,
		view.Rankings.MostFollowers[1].Rank,
		view.Rankings.MostFollowers[2].Rank,
	})

	assert.Equal(t, "first", view.Insights.TopPerformer.Username)
	assert.Equal(t, "first", view.Insights.MostFollowed.Username)
	assert.Equal(t, "first", view.Insights.MostActive.Username)
}

func TestComparisonRankingsAndInsights(t *testing.T) {
	results := []models.Result{
		{Profile: profile("alpha", 500, 4.5, 12), Source: models.SourceCache},
		{Profile: profile("beta", 2_000_000, 0.8, 3), Source: models.SourceFresh},
	}

	view := Comparison(results, now)

	require.Len(t, view.Profiles, 2)
	assert.Equal(t, "alpha", view.Profiles[0].Username, "cards keep input order")
	assert.Len(t, view.Profiles[0].RecentPosts, 10, "cards carry at most ten posts")
	assert.Equal(t, 12, view.Profiles[0].TotalPosts)

	assert.Equal(t, "beta", view.Rankings.MostFollowers[0].Username)
	assert.Equal(t, "2.0M", view.Rankings.MostFollowers[0].Value)
	assert.Equal(t, float64(2_000_000), view.Rankings.MostFollowers[0].RawValue)
	assert.Equal(t, "alpha", view.Rankings.HighestEngagement[0].Username)
	assert.Equal(t, "4.50%", view.Rankings.HighestEngagement[0].Value)

	in := view.Insights
	assert.Equal(t, int64(2_000_500), in.TotalCombinedFollowersRaw)
	assert.Equal(t, "2.0M", in.TotalCombinedFollowers)
	assert.Equal(t, "2.65%", in.AverageEngagementRate)
	assert.Equal(t, "alpha", in.TopPerformer.Username)
	assert.Equal(t, "Highest engagement rate", in.TopPerformer.Reason)
	assert.Equal(t, "beta", in.MostFollowed.Username)
	assert.Equal(t, "alpha", in.MostActive.Username)
	assert.Equal(t, "12", in.MostActive.Value)
	assert.Equal(t, 2, in.ProfilesCompared)

	require.Len(t, view.Meta.DataSources, 2)
	assert.True(t, view.Meta.DataSources[0].CacheHit)
	assert.False(t, view.Meta.DataSources[1].CacheHit)
	assert.Equal(t, models.SourceFresh, view.Meta.DataSources[1].Source)

	assert.Equal(t, "12", view.Metrics.PostsAnalyzed[0].Formatted)
}

func TestRankDoesNotReorderInput(t *testing.T) {
	entries := []MetricEntry{{"a", 1, "1"}, {"b", 3, "3"}, {"c", 2, "2"}}
	ranked := Rank(entries)

	assert.Equal(t, "b", ranked[0].Username)
	assert.Equal(t, "c", ranked[1].Username)
	assert.Equal(t, "a", entries[0].Username)
}
