package models

import (
	"fmt"
	"time"
)

// TimestampOffset is the fixed UTC offset every stored timestamp is written in (JST).
const TimestampOffset = 9 * time.Hour

// TimestampLayout is the wire format of stored timestamps, e.g.
// 2024-05-01T12:00:00+09:00 or 2024-05-01T12:00:00.25+09:00. Fractional
// seconds are written only when non-zero so that ordering survives a round
// trip at full clock precision.
const TimestampLayout = "2006-01-02T15:04:05.999999999-07:00"

var timestampZone = time.FixedZone("JST", int(TimestampOffset.Seconds()))

// FormatTimestamp renders t in the fixed +09:00 offset without losing precision.
func FormatTimestamp(t time.Time) string {
	return t.In(timestampZone).Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp with an explicit offset,
// including "Z" and fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
