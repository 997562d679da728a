package models

import "time"

// ValidationResult captures the outcome of checking one trajectory against a
// theoretical bound. Computed once, never mutated.
type ValidationResult struct {
	Source                 string  `json:"source"`
	TheoreticalProbability float64 `json:"theoretical_probability"`
	EmpiricalProbability   float64 `json:"empirical_probability"`
	TotalPoints            int     `json:"total_points"`
	PointsWithinBounds     int     `json:"points_within_bounds"`
	MeanTrackingError      float64 `json:"mean_tracking_error"`

	// StdTrackingError is the population standard deviation over all samples.
	StdTrackingError float64 `json:"std_tracking_error"`

	// MaxViolation is the largest excess over the bound among out-of-bound
	// samples, zero when every sample is within the bound.
	MaxViolation float64 `json:"max_violation"`

	Bounds           TheoreticalBound `json:"bounds"`
	ValidationPassed bool             `json:"validation_passed"`
}

// SourceError records a per-source failure during batch validation.
type SourceError struct {
	Source string
	Err    error
}

// BatchResult is the outcome of validating a set of sources: the successes in
// input order plus the failures that did not abort the batch.
type BatchResult struct {
	Results  []ValidationResult
	Failures []SourceError
}

// ValidationRun summarises one validation campaign for the history store.
type ValidationRun struct {
	ID            string           `json:"id"`
	CreatedAt     time.Time        `json:"created_at"`
	Bound         TheoreticalBound `json:"bound"`
	Tolerance     float64          `json:"tolerance"`
	Policy        string           `json:"policy"`
	Total         int              `json:"total"`
	Passed        int              `json:"passed"`
	Failures      int              `json:"failures"`
	MeanEmpirical float64          `json:"mean_empirical"`
}
