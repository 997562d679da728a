package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

// TrajectoryLoader abstracts trajectory parsing so batch validation can be
// fed from files, caches, or test fixtures.
type TrajectoryLoader interface {
	Load(source string) (models.Trajectory, error)
}

// Batch validates many sources against one shared bound. Sources are
// independent, so they fan out across a bounded worker pool; results keep the
// input order so reports stay byte-stable.
type Batch struct {
	validator *Validator
	loader    TrajectoryLoader
	workers   int
	logger    *slog.Logger
}

// NewBatch constructs a batch validator. workers <= 0 falls back to 1.
func NewBatch(validator *Validator, loader TrajectoryLoader, workers int, logger *slog.Logger) *Batch {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{validator: validator, loader: loader, workers: workers, logger: logger}
}

// ValidateSources loads and validates each source independently. One source
// failing does not abort the batch: failures are collected alongside the
// successes and reported per source.
func (b *Batch) ValidateSources(ctx context.Context, sources []string) models.BatchResult {
	type slot struct {
		result models.ValidationResult
		err    error
	}

	slots := make([]slot, len(sources))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i].result, slots[i].err = b.validateOne(ctx, sources[i])
			}
		}()
	}

	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	batch := models.BatchResult{}
	for i, s := range slots {
		if s.err != nil {
			b.logger.Warn("source validation failed",
				slog.String("source", sources[i]), slog.Any("error", s.err))
			batch.Failures = append(batch.Failures, models.SourceError{Source: sources[i], Err: s.err})
			continue
		}
		batch.Results = append(batch.Results, s.result)
	}
	return batch
}

func (b *Batch) validateOne(ctx context.Context, source string) (models.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return models.ValidationResult{}, err
	}
	traj, err := b.loader.Load(source)
	if err != nil {
		return models.ValidationResult{}, err
	}
	return b.validator.ValidateTrajectory(traj)
}
