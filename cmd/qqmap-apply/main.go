package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/climtools/qqmap/internal/constants"
	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/internal/qq"
)

func main() {
	var (
		tfFile     = flag.String("tf", "", "Saved transfer function (required)")
		targetFile = flag.String("target", "", "Target NetCDF file to correct (required)")
		variable   = flag.String("variable", "", "Variable to correct (default: auto-detect)")
		out        = flag.String("out", "corrected.nc", "Output NetCDF path")

		thresNaN     = flag.Float64("thresnan", 0.10, "Missing-data fraction that disables a window")
		keepOriginal = flag.Bool("keep-original", false, "Keep uncorrected values where the missing-data gate trips")
		workers      = flag.Int("workers", 0, "Worker goroutines (0 means one per CPU)")

		debug       = flag.Bool("debug", false, "Turn on debugging output")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("qqmap-apply %s\n", constants.Version)
		os.Exit(0)
	}
	if *tfFile == "" || *targetFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: qqmap-apply -tf FILE -target FILE [flags]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tf, err := qq.Load(*tfFile)
	if err != nil {
		log.Fatalf("Failed to load transfer function: %v", err)
	}

	target, err := grid.ReadFile(*targetFile, *variable)
	if err != nil {
		log.Fatalf("Failed to read target grid: %v", err)
	}

	// The method, window and curve policies travel with the transfer
	// function; only the application-side knobs are taken from flags.
	opts := qq.DefaultOptions()
	opts.ThresNaN = *thresNaN
	opts.KeepOriginal = *keepOriginal
	opts.Workers = *workers

	corrected, err := qq.Apply(tf, target, opts, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("Apply failed: %v", err)
	}

	if err := grid.WriteFile(*out, corrected); err != nil {
		log.Fatalf("Failed to write corrected grid: %v", err)
	}
	log.Infof("wrote corrected %s grid (%dx%d cells, %d timestamps) to %s",
		corrected.Name, corrected.Nx(), corrected.Ny(), corrected.Nt(), *out)
}
