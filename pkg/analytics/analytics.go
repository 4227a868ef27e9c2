// Package analytics derives engagement metrics from a profile's posts.
package analytics

import (
	"math"

	"instalytics/pkg/models"
)

// ratePrecision is the number of decimals the engagement rate is stored with
const ratePrecision = 4

// Calculate computes averages and the engagement rate over valid posts only.
// A post is valid when it has likes or video views; with no valid posts every
// metric is zero.
func Calculate(posts []models.Post, followers int64) models.Analytics {
	var likes, comments, views int64
	valid := 0
	for _, p := range posts {
		if p.LikesCount <= 0 && p.VideoViewCount <= 0 {
			continue
		}
		valid++
		likes += p.LikesCount
		comments += p.CommentsCount
		views += p.VideoViewCount
	}

	if valid == 0 {
		return models.Analytics{}
	}

	n := float64(valid)
	a := models.Analytics{
		AvgLikes:        roundHalfUp(float64(likes) / n),
		AvgComments:     roundHalfUp(float64(comments) / n),
		AvgViews:        roundHalfUp(float64(views) / n),
		TotalEngagement: likes + comments,
	}
	if followers > 0 {
		rate := float64(a.TotalEngagement) / n / float64(followers) * 100
		a.EngagementRate = RoundTo(rate, ratePrecision)
	}
	return a
}

// RoundTo rounds v to the given number of decimals
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// roundHalfUp rounds .5 toward positive infinity; inputs are never negative
func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
