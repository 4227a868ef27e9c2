// Package models holds the canonical, upstream-independent representation of
// a profile and its posts as stored in the cache and served to callers.
package models

import "time"

// DataSource tells callers whether a profile came from the cache or a fresh fetch
type DataSource string

const (
	SourceCache DataSource = "cache"
	SourceFresh DataSource = "fresh"
)

// ExternalURL is one link from a profile's bio section
type ExternalURL struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Post is a canonical post record, unique by ShortCode within a profile
type Post struct {
	ID             string   `json:"id"`
	ShortCode      string   `json:"shortCode"`
	Caption        string   `json:"caption"`
	LikesCount     int64    `json:"likesCount"`
	CommentsCount  int64    `json:"commentsCount"`
	VideoViewCount int64    `json:"videoViewCount"`
	DisplayURL     string   `json:"displayUrl"`
	VideoURL       string   `json:"videoUrl,omitempty"`
	PostURL        string   `json:"postUrl"`
	Hashtags       []string `json:"hashtags"`
	Mentions       []string `json:"mentions"`
	Timestamp      string   `json:"timestamp"`
	Type           string   `json:"type"`
	IsCarousel     bool     `json:"isCarousel"`
	CarouselCount  int      `json:"carouselCount"`
}

// Analytics holds the engagement metrics derived from a profile's posts
type Analytics struct {
	AvgLikes        int64   `json:"avgLikes"`
	AvgComments     int64   `json:"avgComments"`
	AvgViews        int64   `json:"avgViews"`
	TotalEngagement int64   `json:"totalEngagement"`
	EngagementRate  float64 `json:"engagementRate"`
}

// Profile is the cached document for one handle
type Profile struct {
	Handle          string        `json:"handle"`
	Username        string        `json:"username"`
	FullName        string        `json:"fullName"`
	Biography       string        `json:"biography"`
	FollowersCount  int64         `json:"followersCount"`
	FollowsCount    int64         `json:"followsCount"`
	PostsCount      int64         `json:"postsCount"`
	ProfilePicURL   string        `json:"profilePicUrl"`
	Verified        bool          `json:"verified"`
	BusinessAccount bool          `json:"businessAccount"`
	Private         bool          `json:"private"`
	ExternalURLs    []ExternalURL `json:"externalUrls"`
	Posts           []Post        `json:"posts"`
	Hashtags        []string      `json:"hashtags"`
	Analytics       Analytics     `json:"analytics"`
	LastFetched     time.Time     `json:"lastFetched"`
	ExpiresAt       time.Time     `json:"expiresAt"`
}

// ProfileSummary is the listing view of a cached profile
type ProfileSummary struct {
	Handle         string    `json:"handle"`
	FullName       string    `json:"fullName"`
	FollowersCount int64     `json:"followersCount"`
	ProfilePicURL  string    `json:"profilePicUrl"`
	Verified       bool      `json:"verified"`
	LastFetched    time.Time `json:"lastFetched"`
}

// Result is a profile together with where it was served from
type Result struct {
	Profile *Profile
	Source  DataSource
}

// Valid reports whether the record is still inside its cache window
func (p *Profile) Valid(now time.Time) bool {
	return p.ExpiresAt.After(now)
}

// Summary returns the listing fields of the profile
func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{
		Handle:         p.Handle,
		FullName:       p.FullName,
		FollowersCount: p.FollowersCount,
		ProfilePicURL:  p.ProfilePicURL,
		Verified:       p.Verified,
		LastFetched:    p.LastFetched,
	}
}

// Clone returns a deep copy so callers never share slices with a store
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.ExternalURLs = cloneSlice(p.ExternalURLs)
	c.Hashtags = cloneSlice(p.Hashtags)
	if p.Posts != nil {
		c.Posts = make([]Post, len(p.Posts))
		for i, post := range p.Posts {
			post.Hashtags = cloneSlice(post.Hashtags)
			post.Mentions = cloneSlice(post.Mentions)
			c.Posts[i] = post
		}
	}
	return &c
}

// cloneSlice copies s, keeping nil and empty distinct
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
