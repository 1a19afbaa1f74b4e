package insight

import "time"

// Timeframe selects how far back notes are considered.
type Timeframe string

const (
	Timeframe24h   Timeframe = "24h"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeAll   Timeframe = "all"
)

// Timeframes lists the accepted values.
var Timeframes = []Timeframe{Timeframe24h, TimeframeWeek, TimeframeMonth, TimeframeAll}

// TimeframeNames returns Timeframes as plain strings, for flag usage and
// tool schemas.
func TimeframeNames() []string {
	names := make([]string, len(Timeframes))
	for i, tf := range Timeframes {
		names[i] = string(tf)
	}
	return names
}

// ParseTimeframe maps s to a Timeframe. Unknown and empty values mean all.
func ParseTimeframe(s string) Timeframe {
	switch tf := Timeframe(s); tf {
	case Timeframe24h, TimeframeWeek, TimeframeMonth:
		return tf
	default:
		return TimeframeAll
	}
}

// Cutoff returns the oldest creation time included, or the zero time for all.
func (tf Timeframe) Cutoff(now time.Time) time.Time {
	switch tf {
	case Timeframe24h:
		return now.Add(-24 * time.Hour)
	case TimeframeWeek:
		return now.Add(-7 * 24 * time.Hour)
	case TimeframeMonth:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}
