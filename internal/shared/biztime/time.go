// Package biztime provides business-timezone date calculations. All storage
// and transport use UTC; the business timezone only decides day boundaries
// for the daily usage log and managed-comment timestamps.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTimezone is the hotspot deployment timezone.
const DefaultTimezone = "Asia/Jakarta"

var (
	bizLocation     *time.Location
	bizLocationOnce sync.Once
	initErr         error
)

// Init initializes the business timezone. Should be called once at startup.
func Init(tz string) error {
	bizLocationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		bizLocation, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// MustInit initializes the business timezone and panics on error.
func MustInit(tz string) {
	if err := Init(tz); err != nil {
		panic(fmt.Sprintf("failed to initialize business timezone %q: %v", tz, err))
	}
}

// Location returns the business timezone, initializing with the default when
// Init was never called.
func Location() *time.Location {
	if bizLocation == nil {
		if err := Init(""); err != nil {
			panic(fmt.Sprintf("biztime: failed to auto-initialize: %v", err))
		}
	}
	return bizLocation
}

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// LocalDate returns the business-timezone calendar date of t, normalized to
// midnight UTC for storage as a date key.
func LocalDate(t time.Time) time.Time {
	local := t.In(Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfDayUTC returns the start of day in business timezone, converted to
// UTC for range queries.
func StartOfDayUTC(t time.Time) time.Time {
	local := t.In(Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location()).UTC()
}

// FormatDate renders YYYY-MM-DD in business timezone.
func FormatDate(t time.Time) string {
	return t.In(Location()).Format("2006-01-02")
}

// FormatClock renders HH:MM:SS in business timezone.
func FormatClock(t time.Time) string {
	return t.In(Location()).Format("15:04:05")
}
