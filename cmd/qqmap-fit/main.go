package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/climtools/qqmap/internal/constants"
	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/internal/qq"
)

func main() {
	var (
		obsFile  = flag.String("obs", "", "Observed NetCDF file (required)")
		refFile  = flag.String("ref", "", "Reference model NetCDF file (required)")
		variable = flag.String("variable", "", "Variable to fit (default: auto-detect in each file)")
		out      = flag.String("out", "transfer.qq", "Output path for the fitted transfer function")

		method        = flag.String("method", string(qq.Additive), "Correction method: additive or multiplicative")
		detrend       = flag.Bool("detrend", false, "Remove a polynomial trend before building curves")
		detrendDegree = flag.Int("detrend-degree", 4, "Degree of the detrending polynomial")
		window        = flag.Int("window", 15, "Day-of-year window radius in days")
		rankN         = flag.Int("rankn", 50, "Number of quantile probability points")
		thresNaN      = flag.Float64("thresnan", 0.10, "Missing-data fraction that disables a window")
		interpolation = flag.String("interpolation", qq.InterpolationLinear, "Interpolation between curve points")
		extrapolation = flag.String("extrapolation", qq.ExtrapolationFlat, "Extrapolation outside the curve range: flat or linear")
		partition     = flag.Float64("partition", 1.0, "Fraction of cells along each axis pooled into the fit")
		seed          = flag.Int64("seed", 0, "Cell-sampling seed (0 seeds from the clock)")
		workers       = flag.Int("workers", 0, "Worker goroutines (0 means one per CPU)")

		debug       = flag.Bool("debug", false, "Turn on debugging output")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("qqmap-fit %s\n", constants.Version)
		os.Exit(0)
	}
	if *obsFile == "" || *refFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: qqmap-fit -obs FILE -ref FILE [flags]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	opts := qq.DefaultOptions()
	opts.Method = qq.Method(*method)
	opts.Detrend = *detrend
	opts.DetrendDegree = *detrendDegree
	opts.Window = *window
	opts.RankN = *rankN
	opts.ThresNaN = *thresNaN
	opts.Interpolation = *interpolation
	opts.Extrapolation = *extrapolation
	opts.Partition = *partition
	opts.Workers = *workers

	obs, err := grid.ReadFile(*obsFile, *variable)
	if err != nil {
		log.Fatalf("Failed to read observed grid: %v", err)
	}
	ref, err := grid.ReadFile(*refFile, *variable)
	if err != nil {
		log.Fatalf("Failed to read reference grid: %v", err)
	}

	var rnd *rand.Rand
	if *seed != 0 {
		rnd = rand.New(rand.NewSource(*seed))
	}

	tf, err := qq.Fit(obs, ref, opts, rnd, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}

	if err := tf.Save(*out); err != nil {
		log.Fatalf("Failed to save transfer function: %v", err)
	}
	log.Infof("saved %s transfer function covering %d day(s) to %s", tf.Method, tf.CoveredDays(), *out)
}
