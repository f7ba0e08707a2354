package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/football-squares/internal/model"
)

func TestHoursUntilExpiryRoundsUp(t *testing.T) {
	reserved := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 24},
		{19*time.Hour + 59*time.Minute, 5},
		{20 * time.Hour, 4},
		{20*time.Hour + time.Minute, 4},
		{23*time.Hour + 59*time.Minute, 1},
		{24 * time.Hour, 0},
		{30 * time.Hour, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, hoursUntilExpiry(reserved, 24, reserved.Add(tc.elapsed)), tc.elapsed.String())
	}
}

func TestDueRemindersGroupsByPlayer(t *testing.T) {
	now := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	at := func(h int) *time.Time { ts := now.Add(-time.Duration(h) * time.Hour); return &ts }
	id := func(v uint64) *uint64 { return &v }

	squares := []model.Square{
		{Status: model.SquareReserved, PlayerID: id(1), ReservedAt: at(19)},  // 5h left
		{Status: model.SquareReserved, PlayerID: id(1), ReservedAt: at(20)},  // 4h left
		{Status: model.SquareReserved, PlayerID: id(2), ReservedAt: at(10)},  // 14h left
		{Status: model.SquareConfirmed, PlayerID: id(3), ReservedAt: at(19)}, // paid
		{Status: model.SquareReserved, PlayerID: id(4), ReservedAt: at(18)},  // 6h left
	}
	pending, order := dueReminders(squares, 24, now)
	assert.Equal(t, []uint64{1, 4}, order)
	assert.Equal(t, pendingReminder{squares: 2, hoursRemaining: 4}, pending[1])
	assert.Equal(t, pendingReminder{squares: 1, hoursRemaining: 6}, pending[4])
}
