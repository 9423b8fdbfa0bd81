package qq

// windowContains reports whether day falls inside the circular window of
// radius w centered on day-of-year d. Day 1 and day 365 are adjacent, so
// windows near either end wrap around the year boundary.
func windowContains(day, d, w int) bool {
	switch {
	case d <= w:
		return (day >= 1 && day <= d+w) || (day >= 365-(w-d) && day <= 365)
	case d > 365-w:
		return (day >= 1 && day <= w-(365-d)) || (day >= d-w && day <= 365)
	default:
		return day >= d-w && day <= d+w
	}
}

// WindowMask returns the membership mask of days within radius w of
// day-of-year d.
func WindowMask(days []int, d, w int) []bool {
	mask := make([]bool, len(days))
	for i, day := range days {
		mask[i] = windowContains(day, d, w)
	}
	return mask
}

// windowIndex lists, for each day-of-year 1..365, the series positions
// whose day falls inside that day's window of radius w.
func windowIndex(days []int, w int) [366][]int {
	byDay := dayPositions(days)
	var idx [366][]int
	for d := 1; d <= 365; d++ {
		for off := -w; off <= w; off++ {
			day := d + off
			if day < 1 {
				day += 365
			} else if day > 365 {
				day -= 365
			}
			idx[d] = append(idx[d], byDay[day]...)
		}
	}
	return idx
}
