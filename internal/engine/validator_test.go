package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

func testBound() models.TheoreticalBound {
	return models.TheoreticalBound{DeltaR: 0.993, Probability: 0.8}
}

// flightLine builds a trajectory whose samples all have the given tracking
// errors along the x axis.
func flightLine(source string, trackingErrors ...float64) models.Trajectory {
	samples := make([]models.TrajectorySample, len(trackingErrors))
	for i, e := range trackingErrors {
		samples[i] = models.TrajectorySample{
			Time:   float64(i) * 0.1,
			Actual: models.Vec3{e, 0, 0},
			Target: models.Vec3{0, 0, 0},
		}
	}
	return models.Trajectory{Source: source, Samples: samples}
}

func TestValidatePerfectTracking(t *testing.T) {
	v, err := NewValidator(testBound(), 0.0, PolicyOneSided, nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	errs := make([]float64, 50)
	res, err := v.ValidateTrajectory(flightLine("perfect.json", errs...))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.EmpiricalProbability != 1.0 {
		t.Fatalf("expected empirical 1.0, got %v", res.EmpiricalProbability)
	}
	if !res.ValidationPassed {
		t.Fatalf("zero tracking error must pass for any non-negative tolerance")
	}
	if res.MaxViolation != 0 {
		t.Fatalf("expected zero max violation, got %v", res.MaxViolation)
	}
	if res.MeanTrackingError != 0 || res.StdTrackingError != 0 {
		t.Fatalf("expected zero statistics, got mean=%v std=%v", res.MeanTrackingError, res.StdTrackingError)
	}
}

func TestValidateCountsViolations(t *testing.T) {
	v, err := NewValidator(testBound(), 0.05, PolicyOneSided, nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	// 10 samples, exactly 3 above delta_r.
	errs := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 1.1, 1.2, 1.5}
	res, err := v.ValidateTrajectory(flightLine("mixed.json", errs...))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.TotalPoints != 10 {
		t.Fatalf("expected 10 points, got %d", res.TotalPoints)
	}
	if res.PointsWithinBounds != 7 {
		t.Fatalf("expected 7 within bounds, got %d", res.PointsWithinBounds)
	}
	if math.Abs(res.EmpiricalProbability-0.7) > 1e-12 {
		t.Fatalf("expected empirical 0.7, got %v", res.EmpiricalProbability)
	}
	if math.Abs(res.MaxViolation-(1.5-0.993)) > 1e-9 {
		t.Fatalf("expected max violation %v, got %v", 1.5-0.993, res.MaxViolation)
	}
	// 0.7 < 0.8 - 0.05, so the one-sided policy fails this trajectory.
	if res.ValidationPassed {
		t.Fatalf("expected validation to fail")
	}
}

func TestValidateBoundaryValueCountsAsWithin(t *testing.T) {
	v, _ := NewValidator(models.TheoreticalBound{DeltaR: 2, Probability: 0.8}, 0.05, PolicyOneSided, nil)
	res, err := v.ValidateTrajectory(flightLine("edge.json", 2))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.PointsWithinBounds != 1 {
		t.Fatalf("tracking error equal to delta_r must count as within")
	}
}

func TestValidateConcreteScenario(t *testing.T) {
	// forward 0.0858, inverse 0.135, gamma 0.9 -> delta_r 0.993, prob 0.8.
	v, _ := NewValidator(testBound(), 0.05, PolicyOneSided, nil)
	errs := make([]float64, 100)
	for i := range errs {
		errs[i] = 0.9 * float64(i) / 100
	}
	res, err := v.ValidateTrajectory(flightLine("scenario.json", errs...))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.EmpiricalProbability != 1.0 {
		t.Fatalf("expected empirical 1.0, got %v", res.EmpiricalProbability)
	}
	if !res.ValidationPassed {
		t.Fatalf("1.0 >= 0.8 - 0.05 must pass")
	}
}

func TestValidateStatistics(t *testing.T) {
	v, _ := NewValidator(models.TheoreticalBound{DeltaR: 10, Probability: 0.8}, 0.05, PolicyOneSided, nil)
	res, err := v.ValidateTrajectory(flightLine("stats.json", 1, 2, 3, 4))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if math.Abs(res.MeanTrackingError-2.5) > 1e-12 {
		t.Fatalf("mean: got %v, want 2.5", res.MeanTrackingError)
	}
	// Population std of {1,2,3,4} is sqrt(1.25).
	if math.Abs(res.StdTrackingError-math.Sqrt(1.25)) > 1e-12 {
		t.Fatalf("std: got %v, want %v", res.StdTrackingError, math.Sqrt(1.25))
	}
}

func TestValidateSymmetricPolicy(t *testing.T) {
	// Empirical 1.0 against theoretical 0.8: one-sided passes, symmetric
	// flags the over-coverage.
	errs := make([]float64, 10)
	traj := flightLine("over.json", errs...)

	oneSided, _ := NewValidator(testBound(), 0.05, PolicyOneSided, nil)
	res, err := oneSided.ValidateTrajectory(traj)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.ValidationPassed {
		t.Fatalf("one-sided policy must pass over-coverage")
	}

	symmetric, _ := NewValidator(testBound(), 0.05, PolicySymmetric, nil)
	res, err = symmetric.ValidateTrajectory(traj)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.ValidationPassed {
		t.Fatalf("symmetric policy must fail |1.0-0.8| > 0.05")
	}
}

func TestValidateEmptyTrajectory(t *testing.T) {
	v, _ := NewValidator(testBound(), 0.05, PolicyOneSided, nil)
	_, err := v.ValidateTrajectory(models.Trajectory{Source: "empty.json"})
	if err == nil {
		t.Fatalf("expected error for empty trajectory")
	}
	if !models.IsDataFormatError(err) {
		t.Fatalf("expected DataFormatError, got %v", err)
	}
}

func TestNewValidatorRejectsNegativeTolerance(t *testing.T) {
	if _, err := NewValidator(testBound(), -0.1, PolicyOneSided, nil); err == nil {
		t.Fatalf("expected error for negative tolerance")
	}
}

func TestParsePolicy(t *testing.T) {
	cases := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyOneSided, false},
		{"one-sided", PolicyOneSided, false},
		{"symmetric", PolicySymmetric, false},
		{"two-sided", "", true},
	}
	for _, tc := range cases {
		got, err := ParsePolicy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParsePolicy(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePolicy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResultInternalConsistency(t *testing.T) {
	v, _ := NewValidator(testBound(), 0.05, PolicyOneSided, nil)
	for n := 1; n <= 5; n++ {
		errs := make([]float64, n)
		for i := range errs {
			errs[i] = float64(i)
		}
		res, err := v.ValidateTrajectory(flightLine(fmt.Sprintf("t%d.json", n), errs...))
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if res.PointsWithinBounds > res.TotalPoints {
			t.Fatalf("within %d exceeds total %d", res.PointsWithinBounds, res.TotalPoints)
		}
		if res.EmpiricalProbability < 0 || res.EmpiricalProbability > 1 {
			t.Fatalf("empirical probability out of range: %v", res.EmpiricalProbability)
		}
	}
}
