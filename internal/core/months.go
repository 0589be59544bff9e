package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"

	// conciseThresholdDays is the range length above which month buckets are used.
	conciseThresholdDays = 31 * 3
)

// ErrInvalidRange is returned when a range starts after it ends.
var ErrInvalidRange = errors.New("invalid date range: start is after end")

// Bucket identifies a calendar day (YYYY-MM-DD) or month (YYYY-MM).
type Bucket string

// IsMonth reports whether the bucket is month-granular.
func (b Bucket) IsMonth() bool {
	return len(b) == len(MonthLayout)
}

// Time returns the first instant of the bucket.
func (b Bucket) Time() (time.Time, error) {
	return ParseDay(string(b))
}

func DayOf(t time.Time) Bucket {
	return Bucket(t.Format(DayLayout))
}

func MonthOf(t time.Time) Bucket {
	return Bucket(t.Format(MonthLayout))
}

// BucketOf returns the month bucket in concise mode, the day bucket otherwise.
func BucketOf(t time.Time, concise bool) Bucket {
	if concise {
		return MonthOf(t)
	}
	return DayOf(t)
}

// ParseDay parses YYYY-MM-DD, or YYYY-MM as the first day of that month.
func ParseDay(s string) (time.Time, error) {
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD or YYYY-MM", s)
	}
	return t, nil
}

// ParseHorizon parses a forecast end. A bare month means its last day.
func ParseHorizon(s string) (time.Time, error) {
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse forecast %q: expected YYYY-MM-DD or YYYY-MM", s)
	}
	return EndOfMonth(t), nil
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func EndOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// BucketStart truncates t to the start of its bucket.
func BucketStart(t time.Time, concise bool) time.Time {
	if concise {
		return StartOfMonth(t)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextBucketStart returns the first instant of the bucket following t's bucket.
func NextBucketStart(t time.Time, concise bool) time.Time {
	start := BucketStart(t, concise)
	if concise {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

// BucketRange lists every bucket from start to end inclusive.
func BucketRange(start, end time.Time, concise bool) ([]Bucket, error) {
	from := BucketStart(start, concise)
	to := BucketStart(end, concise)
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, BucketOf(start, concise), BucketOf(end, concise))
	}

	var out []Bucket
	for t := from; !t.After(to); t = NextBucketStart(t, concise) {
		out = append(out, BucketOf(t, concise))
	}
	return out, nil
}

// BucketCount is the number of buckets BucketRange would return, without
// building them. Day counts saturate for ranges beyond about 290 years.
func BucketCount(start, end time.Time, concise bool) int {
	from := BucketStart(start, concise)
	to := BucketStart(end, concise)
	if from.After(to) {
		return 0
	}
	if concise {
		return MonthsBetween(from, to) + 1
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// PrevMonth returns the first day of the month before t.
func PrevMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, -1, 0)
}

// MonthsBetween counts calendar months from a to b (b - a).
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// IsConcise reports whether a range is long enough to bucket by month.
func IsConcise(start, end time.Time) bool {
	days := int(BucketStart(end, false).Sub(BucketStart(start, false)).Hours() / 24)
	return days > conciseThresholdDays
}
