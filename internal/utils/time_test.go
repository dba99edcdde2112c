package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	midnight := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T00:00:00Z", midnight},
		{"2024-01-01T00:00:00+00:00", midnight},
		{"2024-01-01T02:00:00+02:00", midnight},
		{"2023-12-31T19:00:00-05:00", midnight},
		{"2024-01-01T00:00:00", midnight},
		{"2024-01-01 00:00:00", midnight},
		{"2024-01-01T00:00", midnight},
		{"2024-01-01", midnight},
		{"2024-01-01T00:00:00.250Z", midnight.Add(250 * time.Millisecond)},
		{"2024-01-01T00:00:00.123456+00:00", midnight.Add(123456 * time.Microsecond)},
		{"2024-01-01T01:30+01:30", midnight},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimestamp(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "tomorrow", "2024-13-01", "2024-01-01T25:00:00Z", "01/02/2024"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-05T06:08:09+00:00", FormatTimestamp(ts))

	withMicros := time.Date(2024, 3, 5, 6, 8, 9, 500000000, time.UTC)
	assert.Equal(t, "2024-03-05T06:08:09.5+00:00", FormatTimestamp(withMicros))
}
