package instagram

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// RawProfile is one item of the scraping actor's "details" result set
type RawProfile struct {
	Username          string        `json:"username"`
	FullName          string        `json:"fullName"`
	Biography         string        `json:"biography"`
	FollowersCount    Count         `json:"followersCount"`
	FollowsCount      Count         `json:"followsCount"`
	PostsCount        Count         `json:"postsCount"`
	ProfilePicURL     string        `json:"profilePicUrl"`
	ProfilePicURLHD   string        `json:"profilePicUrlHD"`
	Verified          bool          `json:"verified"`
	IsBusinessAccount bool          `json:"isBusinessAccount"`
	Private           bool          `json:"private"`
	ExternalURLs      []ExternalURL `json:"externalUrls"`
	LatestPosts       []RawPost     `json:"latestPosts"`
}

// ExternalURL is a bio link as the actor reports it
type ExternalURL struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// RawPost is one post, either embedded in a RawProfile or from the "posts" result set
type RawPost struct {
	ID             string            `json:"id"`
	ShortCode      string            `json:"shortCode"`
	Caption        string            `json:"caption"`
	LikesCount     Count             `json:"likesCount"`
	CommentsCount  Count             `json:"commentsCount"`
	VideoViewCount Count             `json:"videoViewCount"`
	DisplayURL     string            `json:"displayUrl"`
	VideoURL       string            `json:"videoUrl,omitempty"`
	URL            string            `json:"url"`
	Hashtags       StringList        `json:"hashtags"`
	Mentions       StringList        `json:"mentions"`
	Timestamp      string            `json:"timestamp"`
	Type           string            `json:"type"`
	ChildPosts     []json.RawMessage `json:"childPosts"`
}

// Count decodes the numeric fields the actor sometimes sends as floats,
// strings or null
type Count int64

// UnmarshalJSON accepts numbers, numeric strings and null
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
		if len(data) == 0 {
			*c = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		// Unparseable counts are treated as absent
		*c = 0
		return nil
	}
	switch {
	case math.IsNaN(f):
		*c = 0
	case f >= math.MaxInt64:
		*c = Count(math.MaxInt64)
	case f <= math.MinInt64:
		*c = Count(math.MinInt64)
	default:
		*c = Count(math.Trunc(f))
	}
	return nil
}

// StringList is a list field that remembers whether the actor sent an array
// at all, since an explicit array wins over parsing the caption
type StringList struct {
	Values  []string
	Present bool
}

// List builds a present StringList
func List(values ...string) StringList {
	return StringList{Values: values, Present: true}
}

// UnmarshalJSON marks the list present only for JSON arrays
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*l = StringList{}
		return nil
	}

	var items []interface{}
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	values := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	*l = StringList{Values: values, Present: true}
	return nil
}

// MarshalJSON writes null for an absent list
func (l StringList) MarshalJSON() ([]byte, error) {
	if !l.Present {
		return []byte("null"), nil
	}
	if l.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Values)
}
