package instagram

import (
	"fmt"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// MaxUsernameLength is the longest handle Instagram accepts
	MaxUsernameLength = 30
)

// GetPostURL constructs the URL for a specific post
func GetPostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > MaxUsernameLength {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips the decorations people paste along with a handle
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return ""
	}

	// Accept full profile links
	for _, prefix := range []string{"https://www.instagram.com/", "https://instagram.com/", "www.instagram.com/", "instagram.com/"} {
		if strings.HasPrefix(strings.ToLower(username), prefix) {
			username = username[len(prefix):]
			break
		}
	}

	// Remove @ symbol if present at the beginning
	if username != "" && username[0] == '@' {
		username = username[1:]
	}

	// Remove any trailing slashes or spaces
	for len(username) > 0 && (username[len(username)-1] == '/' || username[len(username)-1] == ' ') {
		username = username[:len(username)-1]
	}

	return username
}

// NormalizeHandle returns the lowercase cache key for a user supplied handle,
// or false when nothing valid remains after sanitizing
func NormalizeHandle(raw string) (string, bool) {
	handle := strings.ToLower(SanitizeUsername(raw))
	if !IsValidUsername(handle) {
		return "", false
	}
	return handle, true
}
