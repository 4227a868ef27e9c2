package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"instalytics/pkg/response"
)

var (
	accent = lipgloss.Color("#00B7C3")
	subtle = lipgloss.Color("#6C6C6C")
	good   = lipgloss.Color("#39B54A")

	borderStyle = lipgloss.NewStyle().Foreground(subtle)
	headerStyle = lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = cellStyle.Foreground(accent)
	winnerStyle = cellStyle.Foreground(good).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	noteStyle   = lipgloss.NewStyle().Foreground(subtle)
)

// captionWidth caps captions in post tables
const captionWidth = 40

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// ProfileTable renders one profile document as a label/value table
func ProfileTable(v response.ProfileView) string {
	p, a := v.Profile, v.Analytics

	name := "@" + p.Username
	if p.Verified {
		name += " ✓"
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return labelStyle
			}
			return cellStyle
		}).
		Rows(
			[]string{"Name", p.FullName},
			[]string{"Followers", p.Followers},
			[]string{"Following", p.Following},
			[]string{"Posts", p.Posts},
			[]string{"Engagement", a.EngagementRate},
			[]string{"Avg likes", a.AvgLikes},
			[]string{"Avg comments", a.AvgComments},
			[]string{"Avg views", optional(a.AvgViews)},
			[]string{"Posts analyzed", strconv.Itoa(a.PostsAnalyzed)},
			[]string{"Top hashtags", topHashtags(v.Hashtags, 5)},
		)

	meta := fmt.Sprintf("source %s • updated %s • expires %s",
		v.Meta.DataSource,
		v.Meta.LastUpdated.Format(time.RFC3339),
		v.Meta.CacheExpiry.Format(time.RFC3339))

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(name),
		t.String(),
		noteStyle.Render(meta),
	)
}

// PostsTable renders up to limit posts, newest first as given; limit <= 0
// renders all of them
func PostsTable(posts []response.PostView, limit int) string {
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	t := newTable("Post", "Type", "Likes", "Comments", "Views", "Caption")
	for _, p := range posts {
		t.Row(p.ShortCode, p.Type, p.Likes, p.Comments, optional(p.Views), truncate(p.Caption, captionWidth))
	}
	return t.String()
}

// ListingTable renders the cached profile summaries with their age at now
func ListingTable(v response.ListingView, now time.Time) string {
	t := newTable("Username", "Name", "Followers", "Verified", "Cached")
	for _, e := range v.Profiles {
		verified := ""
		if e.Verified {
			verified = "✓"
		}
		t.Row("@"+e.Username, e.Name, e.Followers, verified, age(now.Sub(e.LastScraped)))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		t.String(),
		noteStyle.Render(fmt.Sprintf("%d cached profiles", v.Count)),
	)
}

// ComparisonTable renders one column per profile and one row per metric,
// marking the leader of each ranked metric
func ComparisonTable(v response.ComparisonView) string {
	headers := []string{"Metric"}
	column := make(map[string]int, len(v.Profiles))
	for i, c := range v.Profiles {
		headers = append(headers, "@"+c.Username)
		column[c.Username] = i + 1
	}

	rows := []struct {
		label   string
		entries []response.MetricEntry
		ranking []response.RankEntry
	}{
		{"Followers", v.Metrics.Followers, v.Rankings.MostFollowers},
		{"Engagement", v.Metrics.Engagement, v.Rankings.HighestEngagement},
		{"Avg likes", v.Metrics.AvgLikes, v.Rankings.MostLikes},
		{"Avg comments", v.Metrics.AvgComments, v.Rankings.MostComments},
		{"Posts analyzed", v.Metrics.PostsAnalyzed, nil},
	}

	// row index -> column of the leader
	leaders := make(map[int]int, len(rows))
	t := newTable(headers...)
	for i, r := range rows {
		cells := []string{r.label}
		for _, e := range r.entries {
			cells = append(cells, e.Formatted)
		}
		t.Row(cells...)
		if len(r.ranking) > 1 && r.ranking[0].RawValue > r.ranking[1].RawValue {
			leaders[i] = column[r.ranking[0].Username]
		}
	}

	sources := []string{"Source"}
	for _, s := range v.Meta.DataSources {
		sources = append(sources, string(s.Source))
	}
	t.Row(sources...)

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == 0:
			return labelStyle
		case leaders[row] == col && col > 0:
			return winnerStyle
		}
		return cellStyle
	})

	in := v.Insights
	summary := []string{
		fmt.Sprintf("Top performer: @%s (%s)", in.TopPerformer.Username, in.TopPerformer.Value),
		fmt.Sprintf("Most followed: @%s (%s)", in.MostFollowed.Username, in.MostFollowed.Value),
		fmt.Sprintf("Combined followers: %s • average engagement %s", in.TotalCombinedFollowers, in.AverageEngagementRate),
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		t.String(),
		noteStyle.Render(strings.Join(summary, "\n")),
	)
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func topHashtags(tags []string, n int) string {
	if len(tags) > n {
		tags = tags[:n]
	}
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, " ")
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// age renders how long ago something was cached, coarsely
func age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
