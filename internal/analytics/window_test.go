package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
)

func TestResolveWindowPresets(t *testing.T) {
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	cases := map[enums.AnalyticsPeriod]time.Time{
		enums.AnalyticsPeriodHour:  now.Add(-time.Hour),
		enums.AnalyticsPeriodDay:   time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC),
		enums.AnalyticsPeriodWeek:  time.Date(2025, 3, 24, 12, 0, 0, 0, time.UTC),
		enums.AnalyticsPeriodMonth: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
		enums.AnalyticsPeriodYear:  time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC),
	}
	for period, start := range cases {
		window, err := ResolveWindow(period, nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, start, window.Start, period)
		assert.Equal(t, now, window.End, period)
	}
}

func TestResolveWindowCustom(t *testing.T) {
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	window, err := ResolveWindow(enums.AnalyticsPeriodCustom, &from, &to, now)
	require.NoError(t, err)
	assert.Equal(t, from, window.Start)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC), window.End)

	noon := time.Date(2025, 1, 31, 12, 30, 0, 0, time.UTC)
	window, err = ResolveWindow(enums.AnalyticsPeriodCustom, nil, &noon, now)
	require.NoError(t, err)
	assert.True(t, window.Start.IsZero())
	assert.Equal(t, noon, window.End)

	_, err = ResolveWindow(enums.AnalyticsPeriodCustom, &to, &from, now)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}
