package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/climtools/qqmap/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <qqmap.yaml> -sqlite <qqmap.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlProvider := config.NewYAMLProvider(*yamlFile)
	yamlConfig, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	// Compare configurations
	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	// Compare jobs
	fmt.Printf("Jobs - YAML: %d, SQLite: %d\n", len(yamlConfig.Jobs), len(sqliteConfig.Jobs))
	if len(yamlConfig.Jobs) == len(sqliteConfig.Jobs) {
		fmt.Println("✓ Job count matches")
		for i, yamlJob := range yamlConfig.Jobs {
			sqliteJob := sqliteConfig.Jobs[i]
			if compareJobs(yamlJob, sqliteJob) {
				fmt.Printf("✓ Job %s matches\n", yamlJob.Name)
			} else {
				fmt.Printf("✗ Job %s differs\n", yamlJob.Name)
				printJobDiff(yamlJob, sqliteJob)
			}
		}
	} else {
		fmt.Println("✗ Job count mismatch")
	}

	// Compare sinks
	fmt.Printf("\nSinks - YAML: %d, SQLite: %d\n", len(yamlConfig.Sinks), len(sqliteConfig.Sinks))
	if len(yamlConfig.Sinks) == len(sqliteConfig.Sinks) {
		fmt.Println("✓ Sink count matches")
		for i, yamlSink := range yamlConfig.Sinks {
			compareSinks(i, yamlSink, sqliteConfig.Sinks[i])
		}
	} else {
		fmt.Println("✗ Sink count mismatch")
	}

	fmt.Println("\nTest completed!")
}

func compareJobs(yaml, sqlite config.JobData) bool {
	return yaml.Name == sqlite.Name &&
		yaml.Observed == sqlite.Observed &&
		yaml.Reference == sqlite.Reference &&
		yaml.Target == sqlite.Target &&
		yaml.Method == sqlite.Method &&
		yaml.Detrend == sqlite.Detrend &&
		yaml.DetrendDegree == sqlite.DetrendDegree &&
		yaml.Window == sqlite.Window &&
		yaml.RankN == sqlite.RankN &&
		compareThreshold(yaml.ThresNaN, sqlite.ThresNaN) &&
		yaml.KeepOriginal == sqlite.KeepOriginal &&
		yaml.Interpolation == sqlite.Interpolation &&
		yaml.Extrapolation == sqlite.Extrapolation &&
		yaml.Partition == sqlite.Partition &&
		yaml.Seed == sqlite.Seed &&
		yaml.Workers == sqlite.Workers
}

func compareThreshold(yaml, sqlite *float64) bool {
	if (yaml == nil) != (sqlite == nil) {
		return false
	}
	if yaml == nil {
		return true
	}
	tolerance := 0.000001
	return abs(*yaml-*sqlite) < tolerance
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func printJobDiff(yaml, sqlite config.JobData) {
	if yaml.Name != sqlite.Name {
		fmt.Printf("  Name: YAML='%s', SQLite='%s'\n", yaml.Name, sqlite.Name)
	}
	if yaml.Method != sqlite.Method {
		fmt.Printf("  Method: YAML='%s', SQLite='%s'\n", yaml.Method, sqlite.Method)
	}
	if yaml.Observed != sqlite.Observed {
		fmt.Printf("  Observed: YAML='%s', SQLite='%s'\n", yaml.Observed.Path, sqlite.Observed.Path)
	}
	if yaml.Reference != sqlite.Reference {
		fmt.Printf("  Reference: YAML='%s', SQLite='%s'\n", yaml.Reference.Path, sqlite.Reference.Path)
	}
	if yaml.Target != sqlite.Target {
		fmt.Printf("  Target: YAML='%s', SQLite='%s'\n", yaml.Target.Path, sqlite.Target.Path)
	}
	if yaml.Window != sqlite.Window {
		fmt.Printf("  Window: YAML=%d, SQLite=%d\n", yaml.Window, sqlite.Window)
	}
}

func compareSinks(i int, yaml, sqlite config.SinkData) {
	if yaml.Type != sqlite.Type {
		fmt.Printf("✗ Sink %d type mismatch: YAML='%s', SQLite='%s'\n", i, yaml.Type, sqlite.Type)
		return
	}

	// Compare NetCDF
	if (yaml.NetCDF == nil) != (sqlite.NetCDF == nil) {
		fmt.Printf("✗ Sink %d NetCDF configuration presence mismatch\n", i)
	} else if yaml.NetCDF != nil && !reflect.DeepEqual(*yaml.NetCDF, *sqlite.NetCDF) {
		fmt.Printf("✗ Sink %d NetCDF configuration differs\n", i)
	} else if yaml.NetCDF != nil {
		fmt.Printf("✓ Sink %d NetCDF configuration matches\n", i)
	}

	// Compare TimescaleDB
	if (yaml.TimescaleDB == nil) != (sqlite.TimescaleDB == nil) {
		fmt.Printf("✗ Sink %d TimescaleDB configuration presence mismatch\n", i)
	} else if yaml.TimescaleDB != nil && !reflect.DeepEqual(*yaml.TimescaleDB, *sqlite.TimescaleDB) {
		fmt.Printf("✗ Sink %d TimescaleDB configuration differs\n", i)
	} else if yaml.TimescaleDB != nil {
		fmt.Printf("✓ Sink %d TimescaleDB configuration matches\n", i)
	}
}
