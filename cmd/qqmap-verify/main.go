package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	_ "github.com/lib/pq"
	"gonum.org/v1/gonum/stat"

	"github.com/climtools/qqmap/internal/grid"
)

// CellResult contains the verification metrics for one grid cell
type CellResult struct {
	X, Y           float64
	Count          int
	ObsMean        float64
	CorrectedMean  float64
	MeanBias       float64
	QuantileRMSE   float64
	MaxQuantileGap float64
}

// DomainSummary aggregates the per-cell metrics across the grid
type DomainSummary struct {
	Cells        int
	MeanBias     float64
	MeanAbsBias  float64
	MeanQRMSE    float64
	WorstGap     float64
	WorstGapCell CellResult
	ObsStdDev    float64
}

var deciles = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

func main() {
	// Command line flags
	var (
		dbHost    = flag.String("db-host", "localhost", "Database host")
		dbPort    = flag.Int("db-port", 5432, "Database port")
		dbUser    = flag.String("db-user", "postgres", "Database user")
		dbPass    = flag.String("db-pass", "", "Database password")
		dbName    = flag.String("db-name", "qqmap", "Database name")
		job       = flag.String("job", "", "Correction job name to verify")
		obsFile   = flag.String("obs", "", "Observed NetCDF file to verify against")
		variable  = flag.String("variable", "", "Variable in the observed file (default: auto-detect)")
		worst     = flag.Int("worst", 10, "Number of worst cells to list")
		csvOutput = flag.String("csv", "", "Optional CSV output file path")
	)
	flag.Parse()

	if *job == "" || *obsFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: qqmap-verify -job NAME -obs FILE [flags]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	obs, err := grid.ReadFile(*obsFile, *variable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading observed grid: %v\n", err)
		os.Exit(1)
	}

	// Connect to database
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		*dbHost, *dbPort, *dbUser, *dbPass, *dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Quantile Mapping Verification\n")
	fmt.Printf("=============================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Job: %s\n", *job)
	fmt.Printf("  Observed: %s (%s)\n", *obsFile, obs.Name)
	fmt.Printf("  Grid: %d x %d cells, %d timestamps\n\n", obs.Nx(), obs.Ny(), obs.Nt())

	corrected := fetchCorrectedSeries(db, *job)
	if len(corrected) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no corrected rows stored for job %q\n", *job)
		os.Exit(1)
	}

	results := verifyCells(obs, corrected)
	if len(results) < 1 {
		fmt.Fprintf(os.Stderr, "Error: no cell present in both the database and the observed grid\n")
		os.Exit(1)
	}

	summary := summarize(obs, results)
	displaySummary(summary)
	displayWorstCells(results, *worst)
	displayVerdict(summary)

	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		} else {
			fmt.Printf("\nPer-cell metrics exported to: %s\n", *csvOutput)
		}
	}
}

type cellKey struct{ x, y float64 }

func fetchCorrectedSeries(db *sql.DB, job string) map[cellKey][]float64 {
	query := `
		SELECT x, y, value
		FROM corrected
		WHERE job = $1
		ORDER BY x, y, time
	`

	rows, err := db.Query(query, job)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying corrected values: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	series := make(map[cellKey][]float64)
	for rows.Next() {
		var x, y, v float64
		if err := rows.Scan(&x, &y, &v); err != nil {
			fmt.Fprintf(os.Stderr, "Error scanning row: %v\n", err)
			continue
		}
		k := cellKey{x, y}
		series[k] = append(series[k], v)
	}

	return series
}

// verifyCells pairs each observed cell with its stored corrected series.
// Cells absent from either side drop out silently.
func verifyCells(obs *grid.Grid, corrected map[cellKey][]float64) []CellResult {
	var results []CellResult
	for xi, x := range obs.Xs {
		for yi, y := range obs.Ys {
			corr := corrected[cellKey{x, y}]
			if len(corr) == 0 {
				continue
			}
			obsVals := dropMissing(obs.Series(xi, yi))
			if len(obsVals) == 0 {
				continue
			}
			results = append(results, compareCell(x, y, obsVals, corr))
		}
	}
	return results
}

// compareCell measures how well one cell's corrected distribution matches
// the observed one: mean bias plus the RMSE and worst gap across deciles.
func compareCell(x, y float64, obsVals, corr []float64) CellResult {
	obsSorted := sortedCopy(obsVals)
	corrSorted := sortedCopy(corr)

	result := CellResult{
		X:             x,
		Y:             y,
		Count:         len(corr),
		ObsMean:       stat.Mean(obsSorted, nil),
		CorrectedMean: stat.Mean(corrSorted, nil),
	}
	result.MeanBias = result.CorrectedMean - result.ObsMean

	var sumSq float64
	for _, p := range deciles {
		qo := stat.Quantile(p, stat.Empirical, obsSorted, nil)
		qc := stat.Quantile(p, stat.Empirical, corrSorted, nil)
		gap := qc - qo
		sumSq += gap * gap
		if math.Abs(gap) > result.MaxQuantileGap {
			result.MaxQuantileGap = math.Abs(gap)
		}
	}
	result.QuantileRMSE = math.Sqrt(sumSq / float64(len(deciles)))

	return result
}

func summarize(obs *grid.Grid, results []CellResult) DomainSummary {
	summary := DomainSummary{Cells: len(results)}

	var sumBias, sumAbsBias, sumQRMSE float64
	for _, r := range results {
		sumBias += r.MeanBias
		sumAbsBias += math.Abs(r.MeanBias)
		sumQRMSE += r.QuantileRMSE
		if r.MaxQuantileGap > summary.WorstGap {
			summary.WorstGap = r.MaxQuantileGap
			summary.WorstGapCell = r
		}
	}
	n := float64(len(results))
	summary.MeanBias = sumBias / n
	summary.MeanAbsBias = sumAbsBias / n
	summary.MeanQRMSE = sumQRMSE / n

	var all []float64
	for xi := range obs.Xs {
		for yi := range obs.Ys {
			all = append(all, dropMissing(obs.Series(xi, yi))...)
		}
	}
	summary.ObsStdDev = stat.StdDev(all, nil)

	return summary
}

func displaySummary(s DomainSummary) {
	fmt.Printf("Domain Summary\n")
	fmt.Printf("==============\n\n")
	fmt.Printf("  Cells verified:       %d\n", s.Cells)
	fmt.Printf("  Mean bias:            %+.4f\n", s.MeanBias)
	fmt.Printf("  Mean |bias|:          %.4f\n", s.MeanAbsBias)
	fmt.Printf("  Mean quantile RMSE:   %.4f\n", s.MeanQRMSE)
	fmt.Printf("  Worst quantile gap:   %.4f at (x=%g, y=%g)\n\n",
		s.WorstGap, s.WorstGapCell.X, s.WorstGapCell.Y)
}

func displayWorstCells(results []CellResult, n int) {
	sorted := make([]CellResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].QuantileRMSE > sorted[j].QuantileRMSE
	})
	if n > len(sorted) {
		n = len(sorted)
	}

	fmt.Printf("Worst Cells by Quantile RMSE\n")
	fmt.Printf("============================\n\n")
	fmt.Printf("%10s | %10s | %6s | %10s | %10s | %10s\n", "x", "y", "n", "bias", "qRMSE", "max gap")
	fmt.Printf("-----------+------------+--------+------------+------------+-----------\n")
	for _, r := range sorted[:n] {
		fmt.Printf("%10g | %10g | %6d | %+10.4f | %10.4f | %10.4f\n",
			r.X, r.Y, r.Count, r.MeanBias, r.QuantileRMSE, r.MaxQuantileGap)
	}
	fmt.Println()
}

// displayVerdict grades the residual bias against the spread of the
// observations themselves.
func displayVerdict(s DomainSummary) {
	if s.ObsStdDev == 0 {
		fmt.Printf("ℹ Observed series has zero spread; relative verdict not available\n")
		return
	}
	relative := s.MeanAbsBias / s.ObsStdDev
	switch {
	case relative < 0.05:
		fmt.Printf("✓ Residual bias is %.1f%% of observed spread - correction holds\n", relative*100)
	case relative < 0.20:
		fmt.Printf("ℹ Residual bias is %.1f%% of observed spread - acceptable but inspect worst cells\n", relative*100)
	default:
		fmt.Printf("⚠ WARNING: Residual bias is %.1f%% of observed spread - correction may be miscalibrated!\n", relative*100)
		fmt.Printf("  Check that the job corrected the right variable and period\n")
	}
}

func exportCSV(filename string, results []CellResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"X", "Y", "Count", "ObsMean", "CorrectedMean", "MeanBias", "QuantileRMSE", "MaxQuantileGap"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			fmt.Sprintf("%g", r.X),
			fmt.Sprintf("%g", r.Y),
			fmt.Sprintf("%d", r.Count),
			fmt.Sprintf("%.4f", r.ObsMean),
			fmt.Sprintf("%.4f", r.CorrectedMean),
			fmt.Sprintf("%.4f", r.MeanBias),
			fmt.Sprintf("%.4f", r.QuantileRMSE),
			fmt.Sprintf("%.4f", r.MaxQuantileGap),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func dropMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
