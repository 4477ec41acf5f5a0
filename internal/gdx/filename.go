package gdx

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatedPrefix marks final-price GDX files, e.g. FP_20140101.gdx.
const DatedPrefix = "FP_"

// IsDated reports whether name carries the final-price prefix.
func IsDated(name string) bool {
	return strings.HasPrefix(name, DatedPrefix)
}

// ParseDate extracts the YYYYMMDD date that follows the prefix.
// The prefix itself is not checked; callers filter with IsDated first.
func ParseDate(name string) (time.Time, error) {
	const (
		yearAt  = len(DatedPrefix)
		monthAt = yearAt + 4
		dayAt   = monthAt + 2
		end     = dayAt + 2
	)
	if len(name) < end {
		return time.Time{}, fmt.Errorf("%w: %q is too short", ErrMalformedFilename, name)
	}

	year, err := digits(name[yearAt:monthAt])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q year: %v", ErrMalformedFilename, name, err)
	}
	month, err := digits(name[monthAt:dayAt])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q month: %v", ErrMalformedFilename, name, err)
	}
	day, err := digits(name[dayAt:end])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q day: %v", ErrMalformedFilename, name, err)
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises out-of-range values; a real date survives unchanged.
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrMalformedFilename, name)
	}
	return d, nil
}

// FormatName builds the extension-less dated filename for d.
func FormatName(d time.Time) string {
	return DatedPrefix + d.Format("20060102")
}

// Stem strips the text after the last '.', if any.
func Stem(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// digits parses an all-ASCII-digit field; strconv.Atoi alone accepts signs.
func digits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", s)
		}
	}
	return strconv.Atoi(s)
}
