package qq

import (
	"runtime"
	"sync"
	"time"
)

// runCells runs fn for every (xi, yi) cell across a worker pool. Each cell
// writes only its own output slice, so workers need no locking.
func runCells(nx, ny, workers int, fn func(xi, yi int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	type cell struct{ xi, yi int }
	jobs := make(chan cell)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				fn(c.xi, c.yi)
			}
		}()
	}
	for xi := 0; xi < nx; xi++ {
		for yi := 0; yi < ny; yi++ {
			jobs <- cell{xi, yi}
		}
	}
	close(jobs)
	wg.Wait()
}

// runDays runs fn for every day-of-year in [lo, hi] across a worker pool.
func runDays(lo, hi, workers int, fn func(d int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				fn(d)
			}
		}()
	}
	for d := lo; d <= hi; d++ {
		jobs <- d
	}
	close(jobs)
	wg.Wait()
}

// dayPositions lists the series positions carrying each day-of-year.
func dayPositions(days []int) [366][]int {
	var byDay [366][]int
	for i, d := range days {
		byDay[d] = append(byDay[d], i)
	}
	return byDay
}

// filterTimes copies the timestamps at the kept axis positions.
func filterTimes(times []time.Time, keep []int) []time.Time {
	out := make([]time.Time, len(keep))
	for j, i := range keep {
		out[j] = times[i]
	}
	return out
}
