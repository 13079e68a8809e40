package units

import (
	"fmt"
	"time"
)

// TimestampFormat is the layout used when rendering log timestamps for
// reports, matching the format the logging nodes write.
const TimestampFormat = "2006-01-02 15:04:05-07:00"

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// TimeFromNanos converts a nanosecond-epoch log timestamp to a UTC time.
// All log files store nanosecond epochs; conversion for display happens
// at the report edge.
func TimeFromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// FormatNanos renders a nanosecond-epoch log timestamp in the given
// timezone using the shared layout.
func FormatNanos(ns int64, tz string) (string, error) {
	t := TimeFromNanos(ns)
	if tz != "" {
		var err error
		if t, err = ConvertTime(t, tz); err != nil {
			return "", err
		}
	}
	return t.Format(TimestampFormat), nil
}

// ConvertTime converts a UTC time to the specified timezone
func ConvertTime(utcTime time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "UTC" {
		return utcTime, nil
	}
	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return utcTime, fmt.Errorf("failed to load timezone %s: %w", targetTimezone, err)
	}
	return utcTime.In(loc), nil
}
