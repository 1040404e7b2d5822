package analytics

import (
	"time"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
)

// Window is the closed time range a report covers.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolveWindow turns a period selection into a concrete range ending at now.
// Custom periods use from/to; a custom end at midnight covers that whole day.
func ResolveWindow(period enums.AnalyticsPeriod, from, to *time.Time, now time.Time) (Window, error) {
	now = now.UTC()
	window := Window{End: now}
	switch period {
	case enums.AnalyticsPeriodHour:
		window.Start = now.Add(-time.Hour)
	case enums.AnalyticsPeriodDay:
		window.Start = now.AddDate(0, 0, -1)
	case enums.AnalyticsPeriodWeek:
		window.Start = now.AddDate(0, 0, -7)
	case enums.AnalyticsPeriodYear:
		window.Start = now.AddDate(-1, 0, 0)
	case enums.AnalyticsPeriodCustom:
		if from != nil {
			window.Start = from.UTC()
		}
		if to != nil {
			window.End = endOfDayIfMidnight(to.UTC())
		}
		if window.Start.After(window.End) {
			return Window{}, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to").
				WithDetails(map[string]any{"from": window.Start, "to": window.End})
		}
	default:
		window.Start = now.AddDate(0, -1, 0)
	}
	return window, nil
}

func endOfDayIfMidnight(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t
}
