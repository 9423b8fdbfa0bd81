// Package calendar renumbers timestamp series onto a 365-day calendar.
// February 29 entries are removed and later days of leap years shift down
// by one, so day-of-year values line up across years for windowed statistics.
package calendar

import (
	"fmt"
	"time"
)

// IsLeap reports whether year contains a February 29 under the Gregorian rule.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// NormalizeAxis computes the leap-corrected day-of-year for every timestamp
// and the index set that survives February 29 removal. Timestamps must be
// daily and ascending. len(days) == len(keep) and every day is in [1,365].
func NormalizeAxis(times []time.Time) (days []int, keep []int) {
	n := len(times)
	raw := make([]int, n)
	for i, t := range times {
		raw[i] = t.YearDay()
	}

	// Walk contiguous year blocks. In a leap year everything from February 29
	// onward shifts down by one; when the block starts after February 29 the
	// shift covers the whole block.
	for start := 0; start < n; {
		year := times[start].Year()
		end := start
		for end+1 < n && times[end+1].Year() == year {
			end++
		}
		if IsLeap(year) {
			dec := start
			if raw[start] < 60 {
				dec = start + (60 - raw[start])
			}
			for i := dec; i <= end; i++ {
				raw[i]--
			}
		}
		start = end + 1
	}

	days = make([]int, 0, n)
	keep = make([]int, 0, n)
	for i, t := range times {
		if t.Month() == time.February && t.Day() == 29 {
			continue
		}
		days = append(days, raw[i])
		keep = append(keep, i)
	}
	return days, keep
}

// Normalize filters one (timestamp, value) series onto the 365-day calendar.
// It returns the kept timestamps, the kept values and the corrected
// day-of-year for each kept entry.
func Normalize(times []time.Time, values []float64) ([]time.Time, []float64, []int, error) {
	if len(times) != len(values) {
		return nil, nil, nil, fmt.Errorf("calendar: %d timestamps for %d values", len(times), len(values))
	}
	days, keep := NormalizeAxis(times)
	outTimes := make([]time.Time, len(keep))
	outValues := make([]float64, len(keep))
	for j, i := range keep {
		outTimes[j] = times[i]
		outValues[j] = values[i]
	}
	return outTimes, outValues, days, nil
}
