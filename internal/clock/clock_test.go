package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := time.Date(2026, time.July, 31, 14, 5, 9, 0, time.Local)
	ts := Encode(in)
	require.Equal(t, Timestamp{31, 7, 26, 14, 5, 9}, ts)

	out := ts.Time()
	require.Equal(t, in.Year(), out.Year())
	require.Equal(t, in.Month(), out.Month())
	require.Equal(t, in.Day(), out.Day())
}

func TestYearCentury(t *testing.T) {
	require.Equal(t, 2005, Timestamp{1, 1, 5, 0, 0, 0}.Time().Year())
	require.Equal(t, 1999, Timestamp{1, 1, 99, 0, 0, 0}.Time().Year())
}

func TestUnsetIsCurrentTime(t *testing.T) {
	var ts Timestamp
	require.True(t, ts.IsUnset())
	require.WithinDuration(t, time.Now(), ts.Time(), time.Second)
}
