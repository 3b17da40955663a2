// Package weekday buckets dated records into fixed day-of-week counts for the
// assistance-request histogram.
package weekday

import (
	"strings"
	"time"
)

// Labels are the bucket labels in output order, index 0 = Sunday.
var Labels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Bucket is one day-of-week slot.
type Bucket struct {
	Label string `json:"label"`
	Total int    `json:"total"`
}

// Histogram always holds exactly seven buckets in Labels order.
type Histogram [7]Bucket

// Empty returns a histogram with every label present and all totals zero.
func Empty() Histogram {
	var h Histogram
	for i, l := range Labels {
		h[i] = Bucket{Label: l}
	}
	return h
}

// Aggregate counts records by the weekday of their date. date returns the raw
// date value and whether the record has one; records without a date or with
// an unparseable one are skipped.
func Aggregate[T any](records []T, date func(T) (string, bool)) Histogram {
	h := Empty()
	for _, r := range records {
		raw, ok := date(r)
		if !ok {
			continue
		}
		t, ok := ParseDate(raw)
		if !ok {
			continue
		}
		h[int(t.Weekday())].Total++
	}
	return h
}

// AggregateDates is Aggregate over optional date strings.
func AggregateDates(dates []*string) Histogram {
	return Aggregate(dates, func(d *string) (string, bool) {
		if d == nil {
			return "", false
		}
		return *d, true
	})
}

// Sum returns the total across all buckets.
func (h Histogram) Sum() int {
	n := 0
	for _, b := range h {
		n += b.Total
	}
	return n
}

// Totals returns the bucket totals as floats, for colour scaling.
func (h Histogram) Totals() []float64 {
	out := make([]float64, len(h))
	for i, b := range h {
		out[i] = float64(b.Total)
	}
	return out
}

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
	"01/02/2006",
}

// ParseDate parses the date formats seen in customer records. The weekday of
// the result is the calendar day as written: timestamps keep their own offset
// and date-only values are placed in UTC, so the host's zone never shifts a
// record into a neighbouring bucket.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
