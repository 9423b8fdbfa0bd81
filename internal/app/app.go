// Package app ties configuration, the correction engine and the output
// sinks together into one batch run.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/climtools/qqmap/internal/constants"
	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/internal/managers"
	"github.com/climtools/qqmap/internal/qq"
	"github.com/climtools/qqmap/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = log.GetSugaredLogger()
	}
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run processes every configured job and returns when the batch finishes
// or ctx is cancelled. Jobs run one after another; a failing job is
// reported but does not stop the rest.
func (a *App) Run(ctx context.Context) error {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	sinks, err := managers.NewSinkManager(ctx, cfg.Sinks)
	if err != nil {
		return fmt.Errorf("initializing sinks: %w", err)
	}
	defer func() {
		if cerr := sinks.Close(); cerr != nil {
			log.Errorf("closing sinks: %v", cerr)
		}
	}()

	runID := uuid.New().String()
	log.Infof("starting correction run %s with %d job(s)", runID, len(cfg.Jobs))

	var failures []error
	for _, job := range cfg.Jobs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if err := a.runJob(ctx, job, sinks, runID); err != nil {
			log.Errorf("job %s: %v", job.Name, err)
			failures = append(failures, fmt.Errorf("job %s: %w", job.Name, err))
			continue
		}
		log.Infof("job %s complete", job.Name)
	}

	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	log.Info("correction run complete")
	return nil
}

// runJob reads the three grids of one job, corrects the target and hands
// the result to every sink. Jobs pooling only part of the domain
// (partition below one) fit an aggregate transfer function on the sampled
// cells and apply it everywhere; full-partition jobs correct each cell
// against its own local distribution.
func (a *App) runJob(ctx context.Context, job config.JobData, sinks *managers.SinkManager, runID string) error {
	obs, err := grid.ReadFile(job.Observed.Path, job.Observed.Variable)
	if err != nil {
		return fmt.Errorf("reading observed grid: %w", err)
	}
	ref, err := grid.ReadFile(job.Reference.Path, job.Reference.Variable)
	if err != nil {
		return fmt.Errorf("reading reference grid: %w", err)
	}
	target, err := grid.ReadFile(job.Target.Path, job.Target.Variable)
	if err != nil {
		return fmt.Errorf("reading target grid: %w", err)
	}

	opts := job.Options()

	var corrected *grid.Grid
	if opts.Partition < 1 {
		tf, err := qq.Fit(obs, ref, opts, randFromSeed(job.Seed), a.logger)
		if err != nil {
			return err
		}
		corrected, err = qq.Apply(tf, target, opts, a.logger)
		if err != nil {
			return err
		}
	} else {
		corrected, err = qq.Correct(obs, ref, target, opts, a.logger)
		if err != nil {
			return err
		}
	}

	stampProvenance(corrected, job, opts, runID)
	return sinks.StoreGrid(ctx, job.Name, corrected)
}

// randFromSeed builds the cell-sampling source for pooled fits. A zero
// seed leaves seeding to the clock so repeated runs draw fresh samples.
func randFromSeed(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed))
}

// stampProvenance records how an output grid was produced in its
// attributes, prepending to any history carried over from the target file.
func stampProvenance(g *grid.Grid, job config.JobData, opts qq.Options, runID string) {
	if g.Attrs == nil {
		g.Attrs = make(map[string]string)
	}
	line := fmt.Sprintf("%s: qqmap %s: %s quantile mapping of %s using %s",
		time.Now().UTC().Format(time.RFC3339), constants.Version, opts.Method,
		job.Target.Path, job.Observed.Path)
	if prev := g.Attrs["history"]; prev != "" {
		line = line + "\n" + prev
	}
	g.Attrs["history"] = line
	g.Attrs["qqmap_run_id"] = runID
	g.Attrs["qqmap_version"] = constants.Version
	g.Attrs["qqmap_job"] = job.Name
}
