package response

import (
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders a count as a short magnitude string: 1.5K, 2.5M
func FormatNumber(n int64) string {
	switch {
	case n == 0:
		return "0"
	case n >= 1_000_000:
		return toFixed(float64(n)/1_000_000, 1) + "M"
	case n >= 1_000:
		return toFixed(float64(n)/1_000, 1) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatRate renders a percentage with two decimals and a % suffix
func FormatRate(rate float64) string {
	return toFixed(rate, 2) + "%"
}

// toFixed formats v with the given decimals, rounding halves up on the exact
// binary value of v, so 1.25 gives "1.3" and 1.15 (stored as 1.1499...) "1.1"
func toFixed(v float64, decimals int) string {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}

	exact := strconv.FormatFloat(v, 'f', 40, 64)
	dot := strings.IndexByte(exact, '.')
	n, err := strconv.ParseUint(exact[:dot]+exact[dot+1:dot+1+decimals], 10, 64)
	if err != nil {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}
	if exact[dot+1+decimals] >= '5' {
		n++
	}

	s := strconv.FormatUint(n, 10)
	if decimals == 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	return s[:len(s)-decimals] + "." + s[len(s)-decimals:]
}

// optionalNumber is nil for zero so absent video views serialize as null
func optionalNumber(n int64) *string {
	if n == 0 {
		return nil
	}
	s := FormatNumber(n)
	return &s
}

// preview cuts a caption to 100 characters, marking the cut
func preview(caption string) string {
	runes := []rune(caption)
	if len(runes) <= 100 {
		return caption
	}
	return string(runes[:100]) + "..."
}
