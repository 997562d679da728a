package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/koopmanstack/koopman-verify/internal/bounds"
	"github.com/koopmanstack/koopman-verify/internal/config"
	"github.com/koopmanstack/koopman-verify/internal/engine"
	"github.com/koopmanstack/koopman-verify/internal/history"
	"github.com/koopmanstack/koopman-verify/internal/metrics"
	"github.com/koopmanstack/koopman-verify/internal/models"
	"github.com/koopmanstack/koopman-verify/internal/report"
	"github.com/koopmanstack/koopman-verify/internal/utils"
	"github.com/koopmanstack/koopman-verify/pkg/cache"
)

// ValidationService is the facade tying bound derivation, batch validation,
// reporting, and run history together.
type ValidationService struct {
	logger    *slog.Logger
	params    models.CalibrationParams
	validator *engine.Validator
	batch     *engine.Batch
	loader    engine.TrajectoryLoader
	workers   int
	history   *history.Store
	latencies *utils.LatencyTracker
}

// NewValidationService derives the theoretical bound from params and wires
// the batch validator. history may be nil when run persistence is disabled.
func NewValidationService(
	logger *slog.Logger,
	params models.CalibrationParams,
	valCfg config.ValidationConfig,
	workers int,
	loader engine.TrajectoryLoader,
	hist *history.Store,
) (*ValidationService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bound, err := bounds.Derive(params)
	if err != nil {
		return nil, err
	}
	policy, err := engine.ParsePolicy(valCfg.Policy)
	if err != nil {
		return nil, err
	}
	validator, err := engine.NewValidator(bound, valCfg.Tolerance, policy, logger)
	if err != nil {
		return nil, err
	}

	return &ValidationService{
		logger:    logger,
		params:    params,
		validator: validator,
		batch:     engine.NewBatch(validator, loader, workers, logger),
		loader:    loader,
		workers:   workers,
		history:   hist,
		latencies: utils.NewLatencyTracker(1024),
	}, nil
}

// Bound returns the derived theoretical bound.
func (s *ValidationService) Bound() models.TheoreticalBound {
	return s.validator.Bound()
}

// Envelope returns the per-step error envelope for the service calibration.
func (s *ValidationService) Envelope() ([]float64, error) {
	return bounds.Envelope(s.params)
}

// Run validates the given sources as one campaign: batch validation, report
// generation, and, when enabled, history persistence. Per-source failures are
// part of the returned batch result, never an error.
func (s *ValidationService) Run(ctx context.Context, sources []string) (models.ValidationRun, models.BatchResult, string, error) {
	return s.run(ctx, s.validator, s.batch, sources)
}

// RunWith validates sources against a one-off calibration override, leaving
// the service calibration untouched. Tolerance and policy carry over.
func (s *ValidationService) RunWith(ctx context.Context, params models.CalibrationParams, sources []string) (models.ValidationRun, models.BatchResult, string, error) {
	bound, err := bounds.Derive(params)
	if err != nil {
		return models.ValidationRun{}, models.BatchResult{}, "", err
	}
	validator, err := engine.NewValidator(bound, s.validator.Tolerance(), s.validator.Policy(), s.logger)
	if err != nil {
		return models.ValidationRun{}, models.BatchResult{}, "", err
	}
	return s.run(ctx, validator, engine.NewBatch(validator, s.loader, s.workers, s.logger), sources)
}

func (s *ValidationService) run(ctx context.Context, validator *engine.Validator, batch *engine.Batch, sources []string) (models.ValidationRun, models.BatchResult, string, error) {
	start := time.Now()
	result := batch.ValidateSources(ctx, sources)
	duration := time.Since(start)

	for _, r := range result.Results {
		if r.ValidationPassed {
			metrics.ObserveTrajectory(metrics.OutcomePassed)
		} else {
			metrics.ObserveTrajectory(metrics.OutcomeFailed)
		}
	}
	for range result.Failures {
		metrics.ObserveTrajectory(metrics.OutcomeError)
	}
	metrics.ObserveRun(duration)
	s.latencies.Observe(duration)

	run := models.ValidationRun{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Bound:         validator.Bound(),
		Tolerance:     validator.Tolerance(),
		Policy:        string(validator.Policy()),
		Total:         len(result.Results),
		Passed:        report.CountPassed(result.Results),
		Failures:      len(result.Failures),
		MeanEmpirical: report.MeanEmpirical(result.Results),
	}

	if s.history != nil {
		if err := s.history.RecordRun(ctx, run, result.Results); err != nil {
			s.logger.Warn("failed to persist validation run", slog.Any("error", err))
		}
	}

	text := report.Generate(validator.Bound(), result.Results, result.Failures)

	s.logger.Info("validation run completed",
		slog.String("run_id", run.ID),
		slog.Int("validated", run.Total),
		slog.Int("passed", run.Passed),
		slog.Int("failures", run.Failures),
		slog.Duration("duration", duration),
	)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("run latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}

	return run, result, text, nil
}

// Series loads one trajectory and extracts the time/error/bound series a
// rendering collaborator needs.
func (s *ValidationService) Series(source string) (report.PlotSeries, error) {
	traj, err := s.loader.Load(source)
	if err != nil {
		return report.PlotSeries{}, err
	}
	return report.Series(traj, s.validator.Bound()), nil
}

// ListRuns returns recent validation runs from the history store.
func (s *ValidationService) ListRuns(ctx context.Context, limit int) ([]models.ValidationRun, error) {
	if s.history == nil {
		return nil, utils.NewAppError("history", "run history is disabled", nil)
	}
	return s.history.ListRuns(ctx, limit)
}

// RunResults returns the stored per-trajectory results of a past run.
func (s *ValidationService) RunResults(ctx context.Context, runID string) ([]models.ValidationResult, error) {
	if s.history == nil {
		return nil, utils.NewAppError("history", "run history is disabled", nil)
	}
	return s.history.RunResults(ctx, runID)
}

// CachingLoader wraps a loader with a TTL cache of parsed trajectories.
type CachingLoader struct {
	loader engine.TrajectoryLoader
	cache  *cache.TrajectoryCache
}

// NewCachingLoader returns loader unchanged when c is nil.
func NewCachingLoader(loader engine.TrajectoryLoader, c *cache.TrajectoryCache) engine.TrajectoryLoader {
	if c == nil {
		return loader
	}
	return &CachingLoader{loader: loader, cache: c}
}

// Load returns the cached trajectory when fresh, otherwise parses and stores
// it.
func (l *CachingLoader) Load(source string) (models.Trajectory, error) {
	if traj, ok := l.cache.Get(source); ok {
		return traj, nil
	}
	traj, err := l.loader.Load(source)
	if err != nil {
		return models.Trajectory{}, err
	}
	l.cache.Set(source, traj)
	return traj, nil
}
