// Package engine checks recorded trajectories against a theoretical
// tracking-error guarantee.
package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

// Policy selects how empirical coverage is compared against the guarantee.
type Policy string

const (
	// PolicyOneSided passes when empirical >= theoretical - tolerance. The
	// conformal guarantee is a coverage lower bound, so exceeding it is not a
	// failure. This is the default.
	PolicyOneSided Policy = "one-sided"
	// PolicySymmetric passes when |empirical - theoretical| <= tolerance,
	// flagging over-coverage as miscalibration too.
	PolicySymmetric Policy = "symmetric"
)

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(value) {
	case "", PolicyOneSided:
		return PolicyOneSided, nil
	case PolicySymmetric:
		return PolicySymmetric, nil
	}
	return "", fmt.Errorf("unknown validation policy %q", value)
}

// Validator classifies trajectory samples against a fixed theoretical bound.
// It holds only immutable configuration and is safe for concurrent use.
type Validator struct {
	bound     models.TheoreticalBound
	tolerance float64
	policy    Policy
	logger    *slog.Logger
}

// NewValidator constructs a Validator for one bound and tolerance.
func NewValidator(bound models.TheoreticalBound, tolerance float64, policy Policy, logger *slog.Logger) (*Validator, error) {
	if tolerance < 0 || math.IsNaN(tolerance) {
		return nil, models.NewConfigurationError("tolerance", "must be non-negative")
	}
	if policy == "" {
		policy = PolicyOneSided
	}
	if policy != PolicyOneSided && policy != PolicySymmetric {
		return nil, models.NewConfigurationError("policy", fmt.Sprintf("unknown value %q", policy))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{bound: bound, tolerance: tolerance, policy: policy, logger: logger}, nil
}

// Bound returns the theoretical bound the validator checks against.
func (v *Validator) Bound() models.TheoreticalBound { return v.bound }

// Tolerance returns the configured pass/fail tolerance.
func (v *Validator) Tolerance() float64 { return v.tolerance }

// Policy returns the configured pass policy.
func (v *Validator) Policy() Policy { return v.policy }

// ValidateTrajectory computes per-sample tracking error, classifies each
// sample against delta_r, and aggregates the result. The standard deviation
// is the population one.
func (v *Validator) ValidateTrajectory(traj models.Trajectory) (models.ValidationResult, error) {
	// Empty trajectories are rejected at load time; re-check here since the
	// statistics below divide by the sample count.
	if len(traj.Samples) == 0 {
		return models.ValidationResult{}, models.NewDataFormatError(traj.Source, "no samples", nil)
	}

	trackingErrors := traj.TrackingErrors()
	total := len(trackingErrors)

	within := 0
	maxViolation := 0.0
	for _, e := range trackingErrors {
		if e <= v.bound.DeltaR {
			within++
			continue
		}
		if excess := e - v.bound.DeltaR; excess > maxViolation {
			maxViolation = excess
		}
	}

	empirical := float64(within) / float64(total)
	mean, std := meanStd(trackingErrors)

	result := models.ValidationResult{
		Source:                 traj.Source,
		TheoreticalProbability: v.bound.Probability,
		EmpiricalProbability:   empirical,
		TotalPoints:            total,
		PointsWithinBounds:     within,
		MeanTrackingError:      mean,
		StdTrackingError:       std,
		MaxViolation:           maxViolation,
		Bounds:                 v.bound,
		ValidationPassed:       v.passed(empirical),
	}

	v.logger.Debug("trajectory validated",
		slog.String("source", traj.Source),
		slog.Int("points", total),
		slog.Float64("empirical", empirical),
		slog.Bool("passed", result.ValidationPassed),
	)

	return result, nil
}

func (v *Validator) passed(empirical float64) bool {
	diff := empirical - v.bound.Probability
	if v.policy == PolicySymmetric {
		return math.Abs(diff) <= v.tolerance
	}
	return diff >= -v.tolerance
}

// meanStd returns the mean and population standard deviation of the series.
func meanStd(values []float64) (float64, float64) {
	mean := 0.0
	for _, x := range values {
		mean += x
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, x := range values {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}
