package response

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1.0K"},
		{1250, "1.3K"},
		{1500, "1.5K"},
		{999_999, "1000.0K"},
		{1_000_000, "1.0M"},
		{2_500_000, "2.5M"},
		{612_345_678, "612.3M"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "22.00%", FormatRate(22))
	assert.Equal(t, "14.29%", FormatRate(14.2857))
	assert.Equal(t, "0.00%", FormatRate(0))
	assert.Equal(t, "0.13%", FormatRate(0.125))
	assert.Equal(t, "0.05%", FormatRate(0.0500))
}

func TestPreview(t *testing.T) {
	short := "sunset at the beach"
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("ü", 120)
	got := preview(long)
	assert.Equal(t, strings.Repeat("ü", 100)+"...", got)

	exact := strings.Repeat("a", 100)
	assert.Equal(t, exact, preview(exact))
}

func TestOptionalNumber(t *testing.T) {
	assert.Nil(t, optionalNumber(0))
	if got := optionalNumber(1500); assert.NotNil(t, got) {
		assert.Equal(t, "1.5K", *got)
	}
}
