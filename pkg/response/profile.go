// Package response turns canonical profiles into the JSON documents served to
// callers. Every function here is pure; the caller supplies the clock.
package response

import (
	"time"

	"instalytics/pkg/instagram"
	"instalytics/pkg/models"
)

// ProfileView is the single-profile document
type ProfileView struct {
	Profile     ProfileBlock   `json:"profile"`
	Analytics   AnalyticsBlock `json:"analytics"`
	RecentPosts []PostView     `json:"recentPosts"`
	Hashtags    []string       `json:"hashtags"`
	Meta        Meta           `json:"meta"`
}

// ProfileBlock carries identity and counts
type ProfileBlock struct {
	Username        string               `json:"username"`
	FullName        string               `json:"fullName"`
	AccountURL      string               `json:"accountUrl"`
	Biography       string               `json:"biography"`
	Followers       string               `json:"followers"`
	FollowersRaw    int64                `json:"followersRaw"`
	Following       string               `json:"following"`
	FollowingRaw    int64                `json:"followingRaw"`
	Posts           string               `json:"posts"`
	PostsRaw        int64                `json:"postsRaw"`
	ProfilePicURL   string               `json:"profilePicUrl"`
	Verified        bool                 `json:"verified"`
	BusinessAccount bool                 `json:"businessAccount"`
	Private         bool                 `json:"private"`
	ExternalURLs    []models.ExternalURL `json:"externalUrls"`
}

// AnalyticsBlock carries the derived metrics, formatted and raw
type AnalyticsBlock struct {
	AvgLikes           string  `json:"avgLikes"`
	AvgLikesRaw        int64   `json:"avgLikesRaw"`
	AvgComments        string  `json:"avgComments"`
	AvgCommentsRaw     int64   `json:"avgCommentsRaw"`
	AvgViews           *string `json:"avgViews"`
	AvgViewsRaw        int64   `json:"avgViewsRaw"`
	EngagementRate     string  `json:"engagementRate"`
	EngagementRateRaw  float64 `json:"engagementRateRaw"`
	TotalEngagement    string  `json:"totalEngagement"`
	TotalEngagementRaw int64   `json:"totalEngagementRaw"`
	PostsAnalyzed      int     `json:"postsAnalyzed"`
}

// PostView is one post with human-readable counts next to the raw ones
type PostView struct {
	ID             string   `json:"id"`
	ShortCode      string   `json:"shortCode"`
	Caption        string   `json:"caption"`
	CaptionPreview string   `json:"captionPreview"`
	Likes          string   `json:"likes"`
	LikesRaw       int64    `json:"likesRaw"`
	Comments       string   `json:"comments"`
	CommentsRaw    int64    `json:"commentsRaw"`
	Views          *string  `json:"views"`
	ViewsRaw       int64    `json:"viewsRaw"`
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

// Meta tells callers how old the data is and where it came from
type Meta struct {
	LastUpdated time.Time         `json:"lastUpdated"`
	CacheExpiry time.Time         `json:"cacheExpiry"`
	DataSource  models.DataSource `json:"dataSource"`
	ScrapedAt   time.Time         `json:"scrapedAt"`
}

// PostsView is the posts-only document
type PostsView struct {
	Posts []PostView `json:"posts"`
	Total int        `json:"total"`
}

// ListingView is the cached-profiles document
type ListingView struct {
	Profiles []ListingEntry `json:"profiles"`
	Count    int            `json:"count"`
}

// ListingEntry is one summary row
type ListingEntry struct {
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Followers    string    `json:"followers"`
	FollowersRaw int64     `json:"followersRaw"`
	ProfilePic   string    `json:"profilePic"`
	Verified     bool      `json:"verified"`
	LastScraped  time.Time `json:"lastScraped"`
}

// Profile shapes a single profile served from source
func Profile(p *models.Profile, source models.DataSource, now time.Time) ProfileView {
	return ProfileView{
		Profile: ProfileBlock{
			Username:        p.Username,
			FullName:        p.FullName,
			AccountURL:      instagram.GetUserProfileURL(p.Username),
			Biography:       p.Biography,
			Followers:       FormatNumber(p.FollowersCount),
			FollowersRaw:    p.FollowersCount,
			Following:       FormatNumber(p.FollowsCount),
			FollowingRaw:    p.FollowsCount,
			Posts:           FormatNumber(p.PostsCount),
			PostsRaw:        p.PostsCount,
			ProfilePicURL:   p.ProfilePicURL,
			Verified:        p.Verified,
			BusinessAccount: p.BusinessAccount,
			Private:         p.Private,
			ExternalURLs:    nonNil(p.ExternalURLs),
		},
		Analytics:   analyticsBlock(p),
		RecentPosts: postViews(p.Posts),
		Hashtags:    nonNil(p.Hashtags),
		Meta: Meta{
			LastUpdated: p.LastFetched,
			CacheExpiry: p.ExpiresAt,
			DataSource:  source,
			ScrapedAt:   now.UTC(),
		},
	}
}

// Posts shapes the posts of a cached profile
func Posts(p *models.Profile) PostsView {
	return PostsView{
		Posts: postViews(p.Posts),
		Total: len(p.Posts),
	}
}

// Listing shapes cache summaries in the order given
func Listing(summaries []models.ProfileSummary) ListingView {
	entries := make([]ListingEntry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, ListingEntry{
			Username:     s.Handle,
			Name:         s.FullName,
			Followers:    FormatNumber(s.FollowersCount),
			FollowersRaw: s.FollowersCount,
			ProfilePic:   s.ProfilePicURL,
			Verified:     s.Verified,
			LastScraped:  s.LastFetched,
		})
	}
	return ListingView{Profiles: entries, Count: len(entries)}
}

func analyticsBlock(p *models.Profile) AnalyticsBlock {
	a := p.Analytics
	return AnalyticsBlock{
		AvgLikes:           FormatNumber(a.AvgLikes),
		AvgLikesRaw:        a.AvgLikes,
		AvgComments:        FormatNumber(a.AvgComments),
		AvgCommentsRaw:     a.AvgComments,
		AvgViews:           optionalNumber(a.AvgViews),
		AvgViewsRaw:        a.AvgViews,
		EngagementRate:     FormatRate(a.EngagementRate),
		EngagementRateRaw:  a.EngagementRate,
		TotalEngagement:    FormatNumber(a.TotalEngagement),
		TotalEngagementRaw: a.TotalEngagement,
		PostsAnalyzed:      len(p.Posts),
	}
}

func postViews(posts []models.Post) []PostView {
	views := make([]PostView, 0, len(posts))
	for _, post := range posts {
		views = append(views, postView(post))
	}
	return views
}

func postView(post models.Post) PostView {
	id := post.ID
	if id == "" {
		id = post.ShortCode
	}
	return PostView{
		ID:             id,
		ShortCode:      post.ShortCode,
		Caption:        post.Caption,
		CaptionPreview: preview(post.Caption),
		Likes:          FormatNumber(post.LikesCount),
		LikesRaw:       post.LikesCount,
		Comments:       FormatNumber(post.CommentsCount),
		CommentsRaw:    post.CommentsCount,
		Views:          optionalNumber(post.VideoViewCount),
		ViewsRaw:       post.VideoViewCount,
		DisplayURL:     post.DisplayURL,
		VideoURL:       post.VideoURL,
		PostURL:        post.PostURL,
		Hashtags:       nonNil(post.Hashtags),
		Mentions:       nonNil(post.Mentions),
		Timestamp:      post.Timestamp,
		Type:           post.Type,
		IsCarousel:     post.IsCarousel,
		CarouselCount:  post.CarouselCount,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
