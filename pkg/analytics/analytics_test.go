package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"instalytics/pkg/models"
)

func TestCalculateEngagementExample(t *testing.T) {
	posts := []models.Post{
		{LikesCount: 100, CommentsCount: 10},
		{LikesCount: 300, CommentsCount: 30},
	}

	a := Calculate(posts, 1000)
	assert.Equal(t, int64(440), a.TotalEngagement)
	assert.Equal(t, 22.0, a.EngagementRate)
	assert.Equal(t, int64(200), a.AvgLikes)
	assert.Equal(t, int64(20), a.AvgComments)
	assert.Equal(t, int64(0), a.AvgViews)
}

func TestCalculateAllZeroPosts(t *testing.T) {
	posts := []models.Post{
		{CommentsCount: 5},
		{CommentsCount: 7},
	}

	a := Calculate(posts, 1000)
	assert.Equal(t, models.Analytics{}, a)
}

func TestCalculateNoPosts(t *testing.T) {
	assert.Equal(t, models.Analytics{}, Calculate(nil, 500))
}

func TestCalculateZeroFollowers(t *testing.T) {
	a := Calculate([]models.Post{{LikesCount: 50, CommentsCount: 5}}, 0)
	assert.Equal(t, int64(55), a.TotalEngagement)
	assert.Equal(t, 0.0, a.EngagementRate)
}

func TestCalculateDenominatorIsValidPostsOnly(t *testing.T) {
	posts := []models.Post{
		{LikesCount: 100, CommentsCount: 20},
		{CommentsCount: 999}, // no likes or views, excluded entirely
		{VideoViewCount: 400, CommentsCount: 4},
	}

	a := Calculate(posts, 100)
	assert.Equal(t, int64(124), a.TotalEngagement)
	assert.Equal(t, int64(50), a.AvgLikes)
	assert.Equal(t, int64(12), a.AvgComments)
	assert.Equal(t, int64(200), a.AvgViews)
	assert.Equal(t, 62.0, a.EngagementRate)
}

func TestCalculateRoundsRateToFourDecimals(t *testing.T) {
	posts := []models.Post{{LikesCount: 1}, {LikesCount: 1}, {LikesCount: 1}}

	a := Calculate(posts, 7)
	// 3 / 3 / 7 * 100 = 14.285714...
	assert.Equal(t, 14.2857, a.EngagementRate)
}

func TestCalculateRoundsAveragesHalfUp(t *testing.T) {
	posts := []models.Post{{LikesCount: 1}, {LikesCount: 2}}
	assert.Equal(t, int64(2), Calculate(posts, 10).AvgLikes)
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 1.23, RoundTo(1.2345, 2))
	assert.Equal(t, 1.2346, RoundTo(1.23456, 4))
}
