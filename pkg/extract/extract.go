// Package extract turns raw actor items into canonical profile and post records.
package extract

import (
	"strings"

	"instalytics/pkg/instagram"
	"instalytics/pkg/models"
)

const (
	// MaxPosts caps the merged post list kept per profile
	MaxPosts = 12

	// MaxHashtags caps the profile-level hashtag set
	MaxHashtags = 20

	defaultPostType = "Image"
)

// Profile builds the identity and counter fields of a canonical profile from
// the first details item. Missing fields stay at their zero value and the
// requested handle stands in for a missing username.
func Profile(items []instagram.RawProfile, handle string) models.Profile {
	p := models.Profile{
		Handle:       strings.ToLower(handle),
		Username:     handle,
		ExternalURLs: []models.ExternalURL{},
	}
	if len(items) == 0 {
		return p
	}

	raw := items[0]
	if raw.Username != "" {
		p.Username = raw.Username
	}
	p.FullName = raw.FullName
	p.Biography = raw.Biography
	p.FollowersCount = nonNegative(raw.FollowersCount)
	p.FollowsCount = nonNegative(raw.FollowsCount)
	p.PostsCount = nonNegative(raw.PostsCount)
	p.ProfilePicURL = raw.ProfilePicURLHD
	if p.ProfilePicURL == "" {
		p.ProfilePicURL = raw.ProfilePicURL
	}
	p.Verified = raw.Verified
	p.BusinessAccount = raw.IsBusinessAccount
	p.Private = raw.Private

	for _, link := range raw.ExternalURLs {
		p.ExternalURLs = append(p.ExternalURLs, models.ExternalURL{
			Title: link.Title,
			URL:   link.URL,
		})
	}
	return p
}

// Posts merges the posts embedded in the details item with the posts result
// set. Embedded posts come first and win on a shared shortCode. Items without
// both a shortCode and a display URL are dropped, and the result is capped at
// MaxPosts in merge order.
func Posts(profileItems []instagram.RawProfile, postItems []instagram.RawPost) []models.Post {
	var merged []instagram.RawPost
	if len(profileItems) > 0 {
		merged = append(merged, profileItems[0].LatestPosts...)
	}
	merged = append(merged, postItems...)

	seen := make(map[string]bool, len(merged))
	posts := make([]models.Post, 0, MaxPosts)
	for _, raw := range merged {
		if raw.ShortCode == "" || raw.DisplayURL == "" {
			continue
		}
		if seen[raw.ShortCode] {
			continue
		}
		seen[raw.ShortCode] = true

		posts = append(posts, Post(raw))
		if len(posts) == MaxPosts {
			break
		}
	}
	return posts
}

// Post converts a single raw post
func Post(raw instagram.RawPost) models.Post {
	post := models.Post{
		ID:             raw.ID,
		ShortCode:      raw.ShortCode,
		Caption:        raw.Caption,
		LikesCount:     nonNegative(raw.LikesCount),
		CommentsCount:  nonNegative(raw.CommentsCount),
		VideoViewCount: nonNegative(raw.VideoViewCount),
		DisplayURL:     raw.DisplayURL,
		VideoURL:       raw.VideoURL,
		PostURL:        raw.URL,
		Timestamp:      raw.Timestamp,
		Type:           raw.Type,
		IsCarousel:     len(raw.ChildPosts) > 0,
		CarouselCount:  len(raw.ChildPosts),
	}
	if post.PostURL == "" {
		post.PostURL = instagram.GetPostURL(raw.ShortCode)
	}
	if post.Type == "" {
		post.Type = defaultPostType
	}

	if raw.Hashtags.Present {
		post.Hashtags = nonNil(raw.Hashtags.Values)
	} else {
		post.Hashtags = Hashtags(raw.Caption)
	}
	if raw.Mentions.Present {
		post.Mentions = nonNil(raw.Mentions.Values)
	} else {
		post.Mentions = Mentions(raw.Caption)
	}
	return post
}

func nonNegative(c instagram.Count) int64 {
	if c < 0 {
		return 0
	}
	return int64(c)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
