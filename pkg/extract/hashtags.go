package extract

import (
	"regexp"
	"strings"

	"instalytics/pkg/models"
)

var (
	// \w is ASCII-only in RE2; the Hebrew block is the only non-ASCII range accepted
	hashtagPattern = regexp.MustCompile(`#[\w\x{0590}-\x{05FF}]+`)
	mentionPattern = regexp.MustCompile(`@[\w.]+`)
)

// Hashtags returns the hashtags found in a caption without the leading '#'
func Hashtags(caption string) []string {
	return scan(hashtagPattern, caption)
}

// Mentions returns the mentions found in a caption without the leading '@'
func Mentions(caption string) []string {
	return scan(mentionPattern, caption)
}

func scan(pattern *regexp.Regexp, caption string) []string {
	matches := pattern.FindAllString(caption, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1:])
	}
	return out
}

// AllHashtags collects the profile-level hashtag set: every post's tags with
// a leading '#', first-seen order, capped at MaxHashtags
func AllHashtags(posts []models.Post) []string {
	seen := make(map[string]bool)
	tags := make([]string, 0, MaxHashtags)
	for _, post := range posts {
		for _, tag := range post.Hashtags {
			if tag == "" {
				continue
			}
			if !strings.HasPrefix(tag, "#") {
				tag = "#" + tag
			}
			if seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
			if len(tags) == MaxHashtags {
				return tags
			}
		}
	}
	return tags
}
