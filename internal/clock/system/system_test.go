package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.After(before) && got.Before(after), "%v outside [%v, %v]", got, before, after)
	assert.False(t, clk.Pinned())
}

func TestAtPinsTime(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("EST", -5*3600)
	clk := At(time.Date(2025, 6, 10, 22, 0, 0, 0, loc))

	require.True(t, clk.Pinned())
	assert.Equal(t, time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC), clk.Now())
	assert.Equal(t, clk.Now(), clk.Now())
}

func TestParseRunDate(t *testing.T) {
	t.Parallel()

	clk, err := ParseRunDate("2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", clk.Now().Format(DateLayout))

	_, err = ParseRunDate("06/10/2025")
	require.ErrorContains(t, err, "parse run date")
}

func TestZeroClockReadsWallTime(t *testing.T) {
	t.Parallel()

	var clk Clock
	assert.WithinDuration(t, time.Now().UTC(), clk.Now(), time.Minute)
}
