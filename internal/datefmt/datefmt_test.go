package datefmt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: "yyyy-MM-dd", want: "2006-01-02"},
		{pattern: "HH:mm:ss", want: "15:04:05"},
		{pattern: "yyyy-MM-dd'T'HH:mm:ss", want: "2006-01-02T15:04:05"},
		{pattern: "dd MMM yy", want: "02 Jan 06"},
		{pattern: "EEEE, MMMM d", want: "Monday, January 2"},
		{pattern: "hh:mm a", want: "03:04 PM"},
		{pattern: "HH:mm:ss.SSS", want: "15:04:05.000"},
		{pattern: "yyyy-MM-dd'T'HH:mm:ssXXX", want: "2006-01-02T15:04:05Z07:00"},
		{pattern: "'o''clock' HH", want: "o'clock 15"},
	}
	for _, tc := range tests {
		got, err := Layout(tc.pattern)
		require.NoError(t, err, tc.pattern)
		assert.Equal(t, tc.want, got, tc.pattern)
	}
}

func TestLayoutRejectsUnknownLetters(t *testing.T) {
	_, err := Layout("yyyy-QQ")
	require.True(t, errors.Is(err, ErrUnsupportedPattern))

	_, err = Layout("'open")
	require.True(t, errors.Is(err, ErrUnsupportedPattern))
}

func TestParseAndFormat(t *testing.T) {
	parsed, err := Parse(DefaultDate, "2000-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), parsed)

	_, err = Parse(DefaultDate, "01/01/2000")
	require.Error(t, err)

	formatted, err := Format(DefaultDateTime, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2021-03-04T05:06:07", formatted)
}
