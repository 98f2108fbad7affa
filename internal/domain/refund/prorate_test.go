package refund

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
)

func TestProrate(t *testing.T) {
	fourDays := []string{"2024-09-02", "2024-09-03", "2024-09-04", "2024-09-05"}
	threeDays := []string{"2024-09-02", "2024-09-03", "2024-09-04"}

	tests := []struct {
		name          string
		dates         []string
		total         int64
		today         string
		wantUsed      int
		wantRemaining int
		wantAmount    int64
	}{
		{"half used", fourDays, 10000, "2024-09-04", 2, 2, 5000},
		{"nothing used yet", fourDays, 10000, "2024-09-01", 0, 4, 10000},
		{"today counts as remaining", fourDays, 10000, "2024-09-02", 0, 4, 10000},
		{"everything used", fourDays, 10000, "2024-09-06", 4, 0, 0},
		{"rounds down below half", threeDays, 10000, "2024-09-04", 2, 1, 3333},
		{"rounds up at two thirds", threeDays, 10000, "2024-09-03", 1, 2, 6667},
		{"odd cents round half up", []string{"2024-09-02", "2024-09-03"}, 25, "2024-09-03", 1, 1, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prorate(tt.dates, tt.total, tt.today)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsed, got.UsedDays)
			assert.Equal(t, tt.wantRemaining, got.RemainingDays)
			assert.Equal(t, tt.wantAmount, got.Amount)
		})
	}
}

func TestProrateIsMonotonicInRemainingDays(t *testing.T) {
	dates := []string{"2024-09-02", "2024-09-03", "2024-09-04", "2024-09-05", "2024-09-06", "2024-09-09", "2024-09-10"}
	todays := []string{"2024-09-11", "2024-09-10", "2024-09-09", "2024-09-06", "2024-09-05", "2024-09-04", "2024-09-03", "2024-09-02"}

	var prev int64 = -1
	for _, today := range todays {
		p, err := Prorate(dates, 17500, today)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.Amount, prev, "today=%s", today)
		prev = p.Amount
	}
	assert.Equal(t, int64(17500), prev)
}

func TestProrateWithoutDates(t *testing.T) {
	_, err := Prorate(nil, 10000, "2024-09-02")
	assert.Equal(t, apperr.KindFailedPrecondition, apperr.KindOf(err))
}
