// Package bounds derives closed-form tracking-error guarantees from a
// conformal Koopman calibration.
//
// The per-step embedding error is bounded by forwardQuantile+rho with
// confidence 1-alpha/K per step over the horizon, and the inverse
// reconstruction error by inverseQuantile with confidence 1-beta. Under a
// gamma-contracting feedback law these compose into a steady-state radius
//
//	delta_r = (forwardQuantile + rho) / (1 - gamma) + inverseQuantile
//
// holding with probability at least 1 - alpha - beta.
package bounds

import (
	"fmt"
	"math"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

// Model derives a theoretical bound from calibration parameters. The
// geometric-series composition rule lives behind this interface so alternative
// derivations can be substituted without touching the validator.
type Model interface {
	Derive(params models.CalibrationParams) (models.TheoreticalBound, error)
}

// ValidateParams checks the calibration constraints and returns a
// ConfigurationError naming the first offending field.
func ValidateParams(p models.CalibrationParams) error {
	switch {
	case p.ForwardQuantile < 0 || math.IsNaN(p.ForwardQuantile):
		return models.NewConfigurationError("forwardQuantile", "must be non-negative")
	case p.InverseQuantile < 0 || math.IsNaN(p.InverseQuantile):
		return models.NewConfigurationError("inverseQuantile", "must be non-negative")
	case p.Rho < 0 || math.IsNaN(p.Rho):
		return models.NewConfigurationError("rho", "must be non-negative")
	case p.CV < 0 || math.IsNaN(p.CV):
		return models.NewConfigurationError("cv", "must be non-negative")
	case p.K < 1:
		return models.NewConfigurationError("k", "must be a positive integer")
	case p.Gamma <= 0 || p.Gamma >= 1 || math.IsNaN(p.Gamma):
		// gamma >= 1 means the error recursion does not contract and the
		// steady-state bound is infinite. Fail, never clamp.
		return models.NewConfigurationError("gamma", "must be in (0,1)")
	case p.Alpha <= 0 || p.Alpha >= 1 || math.IsNaN(p.Alpha):
		return models.NewConfigurationError("alpha", "must be in (0,1)")
	case p.Beta <= 0 || p.Beta >= 1 || math.IsNaN(p.Beta):
		return models.NewConfigurationError("beta", "must be in (0,1)")
	case p.Alpha+p.Beta >= 1:
		return models.NewConfigurationError("alpha", fmt.Sprintf("alpha+beta must be below 1, got %.3f", p.Alpha+p.Beta))
	}
	return nil
}

// SteadyState composes the per-step bound into the full geometric-series
// steady-state radius. This is the default model.
type SteadyState struct{}

// Derive returns the steady-state bound for the given calibration.
func (SteadyState) Derive(p models.CalibrationParams) (models.TheoreticalBound, error) {
	if err := ValidateParams(p); err != nil {
		return models.TheoreticalBound{}, err
	}
	return models.TheoreticalBound{
		DeltaR:      (p.ForwardQuantile+p.Rho)/(1-p.Gamma) + p.InverseQuantile,
		Probability: 1 - p.Alpha - p.Beta,
	}, nil
}

// FiniteHorizon truncates the contraction series after exactly K steps,
// matching a controller that re-anchors the embedding every horizon. Its
// radius is strictly below the steady-state one.
type FiniteHorizon struct{}

// Derive returns the K-step bound for the given calibration.
func (FiniteHorizon) Derive(p models.CalibrationParams) (models.TheoreticalBound, error) {
	if err := ValidateParams(p); err != nil {
		return models.TheoreticalBound{}, err
	}
	partial := (1 - math.Pow(p.Gamma, float64(p.K))) / (1 - p.Gamma)
	return models.TheoreticalBound{
		DeltaR:      (p.ForwardQuantile+p.Rho)*partial + p.InverseQuantile,
		Probability: 1 - p.Alpha - p.Beta,
	}, nil
}

// Derive is shorthand for the default steady-state model.
func Derive(p models.CalibrationParams) (models.TheoreticalBound, error) {
	return SteadyState{}.Derive(p)
}

// Envelope returns the per-step error bound for steps 1..K: the partial
// geometric sums the plotting collaborators draw as an error band around the
// target trajectory. The envelope is non-decreasing and converges to the
// steady-state radius.
func Envelope(p models.CalibrationParams) ([]float64, error) {
	if err := ValidateParams(p); err != nil {
		return nil, err
	}
	env := make([]float64, p.K)
	for k := 1; k <= p.K; k++ {
		partial := (1 - math.Pow(p.Gamma, float64(k))) / (1 - p.Gamma)
		env[k-1] = (p.ForwardQuantile+p.Rho)*partial + p.InverseQuantile
	}
	return env, nil
}
