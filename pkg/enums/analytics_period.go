package enums

import (
	"fmt"
	"strings"
)

// AnalyticsPeriod selects the time window of the sales dashboard.
type AnalyticsPeriod string

const (
	AnalyticsPeriodHour   AnalyticsPeriod = "hour"
	AnalyticsPeriodDay    AnalyticsPeriod = "day"
	AnalyticsPeriodWeek   AnalyticsPeriod = "week"
	AnalyticsPeriodMonth  AnalyticsPeriod = "month"
	AnalyticsPeriodYear   AnalyticsPeriod = "year"
	AnalyticsPeriodCustom AnalyticsPeriod = "custom"
)

var validAnalyticsPeriods = []AnalyticsPeriod{
	AnalyticsPeriodHour,
	AnalyticsPeriodDay,
	AnalyticsPeriodWeek,
	AnalyticsPeriodMonth,
	AnalyticsPeriodYear,
	AnalyticsPeriodCustom,
}

// ParseAnalyticsPeriod converts raw input into an AnalyticsPeriod; empty input
// defaults to month.
func ParseAnalyticsPeriod(value string) (AnalyticsPeriod, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return AnalyticsPeriodMonth, nil
	}
	for _, candidate := range validAnalyticsPeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics period %q", value)
}
