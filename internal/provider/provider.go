// Package provider holds the outbound data-source connectors: schedule,
// odds, rankings and web search. Each wraps its vendor behind the
// capability interface the pipeline consumes.
package provider

import (
	"time"
)

// ReferenceZone is the fixed wall-clock zone for date-window semantics.
// A "day" of games is midnight to midnight in this zone regardless of the
// vendor's native timestamps.
const ReferenceZone = "America/New_York"

// DateFormat is the canonical target-date layout.
const DateFormat = "2006-01-02"

var refLocation *time.Location

func init() {
	loc, err := time.LoadLocation(ReferenceZone)
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	refLocation = loc
}

// RefLocation returns the reference time zone location.
func RefLocation() *time.Location { return refLocation }

// DayBoundsUTC converts the target date's wall-clock start and end in the
// reference zone to UTC, for vendor commence-time filters.
func DayBoundsUTC(targetDate string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(DateFormat, targetDate, refLocation)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := day
	end := day.Add(24*time.Hour - time.Second)
	return start.UTC(), end.UTC(), nil
}

// InDay reports whether a UTC instant falls on the target date in the
// reference zone.
func InDay(t time.Time, targetDate string) bool {
	return t.In(refLocation).Format(DateFormat) == targetDate
}
