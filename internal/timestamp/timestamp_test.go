package timestamp

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestParse_SerialIsUTCEpoch(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)

	// 45889 = 2025-08-20T00:00Z = 09:00 in Tokyo.
	got, ok := Parse(45889.0, loc)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 8, 20, 9, 0, 0, 0, loc)), "got %s", got)
	assert.Equal(t, loc, got.Location())

	// Quarter day, given as text.
	got, ok = Parse("45889.25", loc)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 8, 20, 15, 0, 0, 0, loc)), "got %s", got)

	got, ok = Parse(45889, loc)
	require.True(t, ok)
	assert.Equal(t, 9, got.Hour())
}

func TestParse_TextWithoutZoneIsLocal(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)

	for _, in := range []string{
		"2025/8/20 15:01",
		"2025-08-20 15:01:00",
		"  2025/08/20 15:01  ",
		"2025年8月20日 15時01分",
		"2025年8月20日(水) 15時1分",
	} {
		got, ok := Parse(in, loc)
		require.True(t, ok, in)
		assert.True(t, got.Equal(time.Date(2025, 8, 20, 15, 1, 0, 0, loc)), "%q -> %s", in, got)
	}
}

func TestParse_TextWithZoneIsConverted(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)

	got, ok := Parse("2025-08-20T06:01:00Z", loc)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 8, 20, 15, 1, 0, 0, loc)))
	assert.Equal(t, loc, got.Location())

	got, ok = Parse("Wed, 20 Aug 2025 06:01:00 +0000", loc)
	require.True(t, ok)
	assert.Equal(t, 15, got.Hour())
}

func TestParse_DayFirstFallback(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)

	got, ok := Parse("20/08/2025 15:01", loc)
	require.True(t, ok)
	assert.Equal(t, time.August, got.Month())
	assert.Equal(t, 20, got.Day())
}

func TestParseAt_LenientForms(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)
	now := time.Date(2025, 8, 20, 16, 0, 0, 0, loc)
	want := time.Date(2025, 8, 20, 15, 1, 0, 0, loc)

	cases := map[string]string{
		"dotted":           "2025.8.20 15:01",
		"no year":          "8/20 15:01",
		"no year dashed":   "08-20 15:01",
		"japanese no year": "8月20日(水) 15時01分",
		"inside prose":     "published: 2025/8/20 15:01",
		"inside japanese":  "掲載日：2025年8月20日 15時01分",
		"dotted in prose":  "Updated 2025.08.20 15:01, morning edition",
		"no year in prose": "posted 8/20 15:01 by desk",
	}
	for name, in := range cases {
		got, ok := ParseAt(in, loc, now)
		require.True(t, ok, "%s: %q", name, in)
		assert.True(t, got.Equal(want), "%s: %q -> %s", name, in, got)
	}

	// The year comes from the reference instant in loc, not UTC.
	newYear := time.Date(2026, 1, 1, 0, 30, 0, 0, loc)
	got, ok := ParseAt("1/1 00:10", loc, newYear)
	require.True(t, ok)
	assert.Equal(t, 2026, got.Year())
}

func TestParse_NotParseable(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)

	for _, in := range []any{nil, "", "   ", "\t\n", "not a date", "たぶん昨日", -5.0} {
		_, ok := Parse(in, loc)
		assert.False(t, ok, "%v", in)
	}
}

func TestFormat_UnpaddedMonthAndDay(t *testing.T) {
	t.Parallel()
	loc := tokyo(t)

	assert.Equal(t, "25/8/20 15:01", Format(time.Date(2025, 8, 20, 15, 1, 0, 0, loc)))
	assert.Equal(t, "25/12/3 09:05", Format(time.Date(2025, 12, 3, 9, 5, 59, 0, loc)))
	assert.Equal(t, "05/1/1 00:00", Format(time.Date(2005, 1, 1, 0, 0, 0, 0, loc)))
}
