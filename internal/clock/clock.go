// Package clock synthesizes the 6-byte "SDX time" used both by the clock
// query command and by PCL directory-entry timestamps.
package clock

import "time"

// Timestamp is the day/month/year/hour/minute/second layout exchanged over
// the bus. Year is stored mod 100; year<80 decodes as 20xx, else 19xx.
// The all-zero value means "unset".
type Timestamp [6]byte

// Encode converts a wall-clock time to the wire Timestamp.
func Encode(t time.Time) Timestamp {
	return Timestamp{
		byte(t.Day()),
		byte(t.Month()),
		byte(t.Year() % 100),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
	}
}

// IsUnset reports whether every byte of the timestamp is zero.
func (ts Timestamp) IsUnset() bool {
	return ts == Timestamp{}
}

// Time decodes ts back to a wall-clock time. An unset timestamp decodes to
// the current time, per spec.
func (ts Timestamp) Time() time.Time {
	if ts.IsUnset() {
		return time.Now()
	}
	year := int(ts[2])
	if year < 80 {
		year += 2000
	} else {
		year += 1900
	}
	return time.Date(year, time.Month(ts[1]), int(ts[0]), int(ts[3]), int(ts[4]), int(ts[5]), 0, time.Local)
}

// Now returns the current local time as a wire Timestamp.
func Now() Timestamp {
	return Encode(time.Now())
}
