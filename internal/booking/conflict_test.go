package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trainer-booking/internal/model"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestIntervalOverlaps(t *testing.T) {
	base := NewInterval(at(10, 0), 60)
	cases := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"inside", NewInterval(at(10, 15), 15), true},
		{"straddles start", NewInterval(at(9, 30), 45), true},
		{"straddles end", NewInterval(at(10, 30), 45), true},
		{"covers", NewInterval(at(9, 0), 180), true},
		{"touches end", NewInterval(at(11, 0), 30), false},
		{"touches start", NewInterval(at(9, 0), 60), false},
		{"disjoint", NewInterval(at(13, 0), 30), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.iv))
			assert.Equal(t, tc.want, tc.iv.Overlaps(base))
		})
	}
}

func TestFindConflict(t *testing.T) {
	now := at(8, 0)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	existing := []model.Booking{
		{ID: "confirmed", ScheduledAt: at(10, 0), DurationMinutes: 60, Status: model.StatusConfirmed},
		{ID: "cancelled", ScheduledAt: at(12, 0), DurationMinutes: 60, Status: model.StatusCancelled},
		{ID: "stale-hold", ScheduledAt: at(14, 0), DurationMinutes: 60, Status: model.StatusSoftHold, HoldExpiry: &past},
		{ID: "live-hold", ScheduledAt: at(16, 0), DurationMinutes: 60, Status: model.StatusSoftHold, HoldExpiry: &future},
	}

	t.Run("overlap with confirmed booking", func(t *testing.T) {
		c := FindConflict(NewInterval(at(10, 30), 45), existing, "", now)
		require.NotNil(t, c)
		assert.Equal(t, "confirmed", c.ID)
	})
	t.Run("touching endpoint is free", func(t *testing.T) {
		assert.Nil(t, FindConflict(NewInterval(at(11, 0), 30), existing, "", now))
	})
	t.Run("cancelled booking ignored", func(t *testing.T) {
		assert.Nil(t, FindConflict(NewInterval(at(12, 0), 60), existing, "", now))
	})
	t.Run("expired hold ignored", func(t *testing.T) {
		assert.Nil(t, FindConflict(NewInterval(at(14, 0), 60), existing, "", now))
	})
	t.Run("live hold blocks", func(t *testing.T) {
		c := FindConflict(NewInterval(at(16, 30), 60), existing, "", now)
		require.NotNil(t, c)
		assert.Equal(t, "live-hold", c.ID)
	})
	t.Run("excluded booking ignored", func(t *testing.T) {
		assert.Nil(t, FindConflict(NewInterval(at(10, 0), 60), existing, "confirmed", now))
	})
}

func TestScanWindowCoversLongestBooking(t *testing.T) {
	cand := NewInterval(at(10, 0), 30)
	from, to := ScanWindow(cand)
	assert.Equal(t, at(10, 0).Add(-24*time.Hour), from)
	assert.Equal(t, at(10, 30), to)

	long := NewInterval(at(10, 0), MaxDurationMinutes)
	from, _ = ScanWindow(long)
	assert.Equal(t, at(10, 0).Add(-24*time.Hour), from)
}
