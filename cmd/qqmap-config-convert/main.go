package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/climtools/qqmap/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <qqmap.yaml> -sqlite <qqmap.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration...\n")
	yamlProvider := config.NewYAMLProvider(*yamlFile)
	configData, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration is not valid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("  Loaded %d jobs, %d sinks\n", len(configData.Jobs), len(configData.Sinks))

	if *dryRun {
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	// Remove existing SQLite file if force is specified
	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	// The provider migrates the schema on open
	fmt.Printf("Creating SQLite database...\n")
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	fmt.Printf("Loading configuration into SQLite database...\n")
	if err := sqliteProvider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func printConfigSummary(configData *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Jobs (%d):\n", len(configData.Jobs))
	for _, job := range configData.Jobs {
		method := job.Method
		if method == "" {
			method = "additive"
		}
		fmt.Printf("  - %s (%s): %s -> %s\n", job.Name, method, job.Target.Path, job.Observed.Path)
	}

	fmt.Printf("\nSinks (%d):\n", len(configData.Sinks))
	for _, sink := range configData.Sinks {
		switch sink.Type {
		case "netcdf":
			fmt.Printf("  - NetCDF: %s\n", sink.NetCDF.Directory)
		case "timescaledb":
			fmt.Printf("  - TimescaleDB: %s\n", sink.TimescaleDB.ConnectionString)
		default:
			fmt.Printf("  - %s\n", sink.Type)
		}
	}
}
