package response

import (
	"sort"
	"strconv"
	"time"

	"instalytics/pkg/instagram"
	"instalytics/pkg/models"
)

// cardPosts is how many recent posts each comparison card carries
const cardPosts = 10

// ComparisonView is the multi-profile document
type ComparisonView struct {
	Profiles []Card         `json:"profiles"`
	Metrics  MetricTable    `json:"metrics"`
	Rankings Rankings       `json:"rankings"`
	Insights Insights       `json:"insights"`
	Meta     ComparisonMeta `json:"meta"`
}

// Card summarises one compared profile
type Card struct {
	Username          string     `json:"username"`
	Name              string     `json:"name"`
	AccountURL        string     `json:"accountUrl"`
	ProfilePic        string     `json:"profilePic"`
	Verified          bool       `json:"verified"`
	BusinessAccount   bool       `json:"businessAccount"`
	Followers         string     `json:"followers"`
	FollowersRaw      int64      `json:"followersRaw"`
	Following         string     `json:"following"`
	FollowingRaw      int64      `json:"followingRaw"`
	Posts             string     `json:"posts"`
	PostsRaw          int64      `json:"postsRaw"`
	EngagementRate    string     `json:"engagementRate"`
	EngagementRateRaw float64    `json:"engagementRateRaw"`
	AvgLikes          string     `json:"avgLikes"`
	AvgLikesRaw       int64      `json:"avgLikesRaw"`
	AvgComments       string     `json:"avgComments"`
	AvgCommentsRaw    int64      `json:"avgCommentsRaw"`
	AvgViews          *string    `json:"avgViews"`
	AvgViewsRaw       int64      `json:"avgViewsRaw"`
	TotalPosts        int        `json:"totalPosts"`
	LastUpdated       time.Time  `json:"lastUpdated"`
	RecentPosts       []PostView `json:"recentPosts"`
}

// MetricEntry is one profile's value for a compared metric, in input order
type MetricEntry struct {
	Username  string  `json:"username"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

// MetricTable holds every compared metric in input order
type MetricTable struct {
	Followers     []MetricEntry `json:"followers"`
	Engagement    []MetricEntry `json:"engagement"`
	AvgLikes      []MetricEntry `json:"avgLikes"`
	AvgComments   []MetricEntry `json:"avgComments"`
	PostsAnalyzed []MetricEntry `json:"postsAnalyzed"`
}

// RankEntry is one position in a ranking
type RankEntry struct {
	Rank     int     `json:"rank"`
	Username string  `json:"username"`
	Value    string  `json:"value"`
	RawValue float64 `json:"rawValue"`
}

// Rankings orders profiles by each metric, highest first
type Rankings struct {
	MostFollowers     []RankEntry `json:"mostFollowers"`
	HighestEngagement []RankEntry `json:"highestEngagement"`
	MostLikes         []RankEntry `json:"mostLikes"`
	MostComments      []RankEntry `json:"mostComments"`
}

// Pick names the profile that stands out for one insight
type Pick struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Reason   string `json:"reason"`
}

// Insights aggregates across all compared profiles
type Insights struct {
	TotalCombinedFollowers    string    `json:"totalCombinedFollowers"`
	TotalCombinedFollowersRaw int64     `json:"totalCombinedFollowersRaw"`
	AverageEngagementRate     string    `json:"averageEngagementRate"`
	AverageEngagementRateRaw  float64   `json:"averageEngagementRateRaw"`
	TopPerformer              Pick      `json:"topPerformer"`
	MostFollowed              Pick      `json:"mostFollowed"`
	MostActive                Pick      `json:"mostActive"`
	ProfilesCompared          int       `json:"profilesCompared"`
	ComparedAt                time.Time `json:"comparedAt"`
}

// ComparisonMeta lists where each compared profile came from
type ComparisonMeta struct {
	ProfilesCompared int           `json:"profilesCompared"`
	ComparedAt       time.Time     `json:"comparedAt"`
	DataSources      []SourceEntry `json:"dataSources"`
}

// SourceEntry is the provenance of one compared profile
type SourceEntry struct {
	Username    string            `json:"username"`
	LastScraped time.Time         `json:"lastScraped"`
	Source      models.DataSource `json:"source"`
	CacheHit    bool              `json:"cacheHit"`
}

// Comparison shapes two or more profiles, kept in the order given
func Comparison(results []models.Result, now time.Time) ComparisonView {
	comparedAt := now.UTC()
	view := ComparisonView{
		Profiles: make([]Card, 0, len(results)),
		Meta: ComparisonMeta{
			ProfilesCompared: len(results),
			ComparedAt:       comparedAt,
			DataSources:      make([]SourceEntry, 0, len(results)),
		},
	}

	profiles := make([]*models.Profile, 0, len(results))
	for _, r := range results {
		p := r.Profile
		profiles = append(profiles, p)

		view.Profiles = append(view.Profiles, card(p))
		view.Meta.DataSources = append(view.Meta.DataSources, SourceEntry{
			Username:    p.Username,
			LastScraped: p.LastFetched,
			Source:      r.Source,
			CacheHit:    r.Source == models.SourceCache,
		})

		a := p.Analytics
		view.Metrics.Followers = append(view.Metrics.Followers, MetricEntry{p.Username, float64(p.FollowersCount), FormatNumber(p.FollowersCount)})
		view.Metrics.Engagement = append(view.Metrics.Engagement, MetricEntry{p.Username, a.EngagementRate, FormatRate(a.EngagementRate)})
		view.Metrics.AvgLikes = append(view.Metrics.AvgLikes, MetricEntry{p.Username, float64(a.AvgLikes), FormatNumber(a.AvgLikes)})
		view.Metrics.AvgComments = append(view.Metrics.AvgComments, MetricEntry{p.Username, float64(a.AvgComments), FormatNumber(a.AvgComments)})
		view.Metrics.PostsAnalyzed = append(view.Metrics.PostsAnalyzed, MetricEntry{p.Username, float64(len(p.Posts)), strconv.Itoa(len(p.Posts))})
	}

	view.Rankings = Rankings{
		MostFollowers:     Rank(view.Metrics.Followers),
		HighestEngagement: Rank(view.Metrics.Engagement),
		MostLikes:         Rank(view.Metrics.AvgLikes),
		MostComments:      Rank(view.Metrics.AvgComments),
	}
	view.Insights = insights(profiles, comparedAt)

	return view
}

// Rank orders entries by value, highest first; equal values keep input order
func Rank(entries []MetricEntry) []RankEntry {
	sorted := make([]MetricEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	ranked := make([]RankEntry, len(sorted))
	for i, e := range sorted {
		ranked[i] = RankEntry{
			Rank:     i + 1,
			Username: e.Username,
			Value:    e.Formatted,
			RawValue: e.Value,
		}
	}
	return ranked
}

func insights(profiles []*models.Profile, comparedAt time.Time) Insights {
	in := Insights{
		ProfilesCompared: len(profiles),
		ComparedAt:       comparedAt,
	}
	if len(profiles) == 0 {
		in.TotalCombinedFollowers = "0"
		in.AverageEngagementRate = FormatRate(0)
		return in
	}

	var rateSum float64
	top, followed, active := profiles[0], profiles[0], profiles[0]
	for _, p := range profiles {
		in.TotalCombinedFollowersRaw += p.FollowersCount
		rateSum += p.Analytics.EngagementRate

		// strict comparisons keep the earliest profile on ties
		if p.Analytics.EngagementRate > top.Analytics.EngagementRate {
			top = p
		}
		if p.FollowersCount > followed.FollowersCount {
			followed = p
		}
		if len(p.Posts) > len(active.Posts) {
			active = p
		}
	}

	in.TotalCombinedFollowers = FormatNumber(in.TotalCombinedFollowersRaw)
	in.AverageEngagementRateRaw = rateSum / float64(len(profiles))
	in.AverageEngagementRate = FormatRate(in.AverageEngagementRateRaw)
	in.TopPerformer = Pick{top.Username, top.FullName, FormatRate(top.Analytics.EngagementRate), "Highest engagement rate"}
	in.MostFollowed = Pick{followed.Username, followed.FullName, FormatNumber(followed.FollowersCount), "Most followers"}
	in.MostActive = Pick{active.Username, active.FullName, strconv.Itoa(len(active.Posts)), "Most content analyzed"}

	return in
}

func card(p *models.Profile) Card {
	a := p.Analytics
	posts := p.Posts
	if len(posts) > cardPosts {
		posts = posts[:cardPosts]
	}

	return Card{
		Username:          p.Username,
		Name:              p.FullName,
		AccountURL:        instagram.GetUserProfileURL(p.Username),
		ProfilePic:        p.ProfilePicURL,
		Verified:          p.Verified,
		BusinessAccount:   p.BusinessAccount,
		Followers:         FormatNumber(p.FollowersCount),
		FollowersRaw:      p.FollowersCount,
		Following:         FormatNumber(p.FollowsCount),
		FollowingRaw:      p.FollowsCount,
		Posts:             FormatNumber(p.PostsCount),
		PostsRaw:          p.PostsCount,
		EngagementRate:    FormatRate(a.EngagementRate),
		EngagementRateRaw: a.EngagementRate,
		AvgLikes:          FormatNumber(a.AvgLikes),
		AvgLikesRaw:       a.AvgLikes,
		AvgComments:       FormatNumber(a.AvgComments),
		AvgCommentsRaw:    a.AvgComments,
		AvgViews:          optionalNumber(a.AvgViews),
		AvgViewsRaw:       a.AvgViews,
		TotalPosts:        len(p.Posts),
		LastUpdated:       p.LastFetched,
		RecentPosts:       postViews(posts),
	}
}
