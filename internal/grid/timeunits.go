package grid

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeEncoding describes a CF-style numeric time axis: counts of a fixed
// unit since an epoch, under a named calendar.
type TimeEncoding struct {
	Unit     string // days, hours, minutes or seconds
	Epoch    time.Time
	Calendar string // standard, gregorian, proleptic_gregorian, noleap, 365_day
}

var epochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseTimeUnits parses a CF units string such as
// "days since 1850-01-01 00:00:00" together with its calendar attribute.
// An empty calendar means standard.
func ParseTimeUnits(units, calendar string) (*TimeEncoding, error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("time units %q: missing \"since\"", units)
	}
	unit := strings.ToLower(strings.TrimSpace(parts[0]))
	unit = strings.TrimSuffix(unit, "s") + "s"
	switch unit {
	case "days", "hours", "minutes", "seconds":
	default:
		return nil, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}

	stamp := strings.TrimSpace(parts[1])
	stamp = strings.TrimSuffix(stamp, " UTC")
	var epoch time.Time
	var err error
	for _, layout := range epochLayouts {
		epoch, err = time.Parse(layout, stamp)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("time units %q: unparseable epoch %q", units, stamp)
	}

	cal := strings.ToLower(strings.TrimSpace(calendar))
	switch cal {
	case "", "standard", "gregorian", "proleptic_gregorian":
		cal = "standard"
	case "noleap", "365_day":
		cal = "noleap"
	default:
		return nil, fmt.Errorf("unsupported calendar %q", calendar)
	}

	return &TimeEncoding{Unit: unit, Epoch: epoch.UTC(), Calendar: cal}, nil
}

func (e *TimeEncoding) unitHours() float64 {
	switch e.Unit {
	case "days":
		return 24
	case "hours":
		return 1
	case "minutes":
		return 1.0 / 60
	default:
		return 1.0 / 3600
	}
}

// Decode converts one numeric axis value to a timestamp.
func (e *TimeEncoding) Decode(v float64) time.Time {
	if e.Calendar == "noleap" {
		return e.decodeNoLeap(v)
	}
	hours := v * e.unitHours()
	days := math.Floor(hours / 24)
	rem := time.Duration((hours - days*24) * float64(time.Hour))
	return e.Epoch.AddDate(0, 0, int(days)).Add(rem)
}

// DecodeAll converts a whole numeric axis.
func (e *TimeEncoding) DecodeAll(vs []float64) []time.Time {
	out := make([]time.Time, len(vs))
	for i, v := range vs {
		out[i] = e.Decode(v)
	}
	return out
}

// Encode converts a timestamp back to the numeric axis value. Only the
// standard calendar is written; noleap files are decoded to their real
// dates on read and re-encoded on the standard axis.
func (e *TimeEncoding) Encode(t time.Time) float64 {
	return t.Sub(e.Epoch).Hours() / e.unitHours()
}

// cumulative day count at the start of each month in a 365-day year
var noLeapMonthStart = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

func noLeapDayOfYear(t time.Time) int {
	return noLeapMonthStart[int(t.Month())] + t.Day()
}

// decodeNoLeap counts whole 365-day years from the epoch, then maps the
// remaining day-of-year onto a real month and day. Sub-day remainders
// carry over as clock time.
func (e *TimeEncoding) decodeNoLeap(v float64) time.Time {
	hours := v * e.unitHours()
	days := math.Floor(hours / 24)
	rem := time.Duration((hours - days*24) * float64(time.Hour))

	total := noLeapDayOfYear(e.Epoch) - 1 + int(days)
	year := e.Epoch.Year() + total/365
	doy := total%365 + 1
	if doy < 1 {
		year--
		doy += 365
	}

	month := 12
	for m := 1; m < 12; m++ {
		if doy <= noLeapMonthStart[m+1] {
			month = m
			break
		}
	}
	day := doy - noLeapMonthStart[month]

	h, m, s := e.Epoch.Clock()
	return time.Date(year, time.Month(month), day, h, m, s, 0, time.UTC).Add(rem)
}
