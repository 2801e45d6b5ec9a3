package utils

import (
	"fmt"
	"time"
)

// GetCurrentTimeMillis returns current time in milliseconds since epoch
func GetCurrentTimeMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// MillisToTime converts milliseconds since epoch to time.Time
func MillisToTime(millis int64) time.Time {
	return time.Unix(0, millis*int64(time.Millisecond))
}

// TimeToMillis converts time.Time to milliseconds since epoch
func TimeToMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// FormatTime formats time in ISO 8601 format
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ParseTime parses ISO 8601 formatted time string
func ParseTime(timeStr string) (time.Time, error) {
	return time.Parse(time.RFC3339, timeStr)
}

// ExpiryFromNow calculates an expiry timestamp (millis) a duration from now
func ExpiryFromNow(d time.Duration) int64 {
	return GetCurrentTimeMillis() + d.Milliseconds()
}

// RetentionDeadline returns the expiry timestamp for a record created at
// createdMillis with an ISO 8601 duration retention period. Only day-based
// periods of the form "P<n>D" are interpreted; anything else returns ok=false
// and the record never auto-expires.
func RetentionDeadline(createdMillis int64, retentionPeriod string) (int64, bool) {
	var days int
	n, err := fmt.Sscanf(retentionPeriod, "P%dD", &days)
	if err != nil || n != 1 || days <= 0 {
		return 0, false
	}
	return createdMillis + int64(days)*24*60*60*1000, true
}
