// Package report renders validation outcomes as deterministic plain text and
// extracts the numeric series consumed by external plotting tools.
package report

import (
	"fmt"
	"strings"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

// Generate renders a textual validation summary. Output is byte-for-byte
// reproducible for the same inputs: no timestamps, per-result lines follow
// input order.
func Generate(bound models.TheoreticalBound, results []models.ValidationResult, failures []models.SourceError) string {
	var b strings.Builder

	b.WriteString("=== TRACKING ERROR BOUNDS VALIDATION ===\n\n")
	fmt.Fprintf(&b, "Theoretical bound (delta_r): %.4f m\n", bound.DeltaR)
	fmt.Fprintf(&b, "Guaranteed probability:      %s\n\n", percent(bound.Probability))

	b.WriteString("Trajectories:\n")
	if len(results) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, r := range results {
		marker := "FAIL"
		if r.ValidationPassed {
			marker = "PASS"
		}
		fmt.Fprintf(&b, "  [%s] %s\n", marker, r.Source)
		fmt.Fprintf(&b, "         empirical %s  theoretical %s  diff %+.1f%%\n",
			percent(r.EmpiricalProbability), percent(r.TheoreticalProbability),
			(r.EmpiricalProbability-r.TheoreticalProbability)*100)
		fmt.Fprintf(&b, "         points %d/%d  mean %.4f m  std %.4f m  max violation %.4f m\n",
			r.PointsWithinBounds, r.TotalPoints, r.MeanTrackingError, r.StdTrackingError, r.MaxViolation)
	}

	if len(failures) > 0 {
		b.WriteString("\nLoad failures:\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "  %s: %v\n", f.Source, f.Err)
		}
	}

	passed := 0
	meanEmpirical := 0.0
	for _, r := range results {
		if r.ValidationPassed {
			passed++
		}
		meanEmpirical += r.EmpiricalProbability
	}

	b.WriteString("\nSummary:\n")
	fmt.Fprintf(&b, "  Trajectories validated: %d\n", len(results))
	fmt.Fprintf(&b, "  Passed:                 %d\n", passed)
	if len(results) == 0 {
		b.WriteString("  Success rate:           n/a\n")
		b.WriteString("  Mean empirical:         n/a\n")
	} else {
		fmt.Fprintf(&b, "  Success rate:           %s\n", percent(float64(passed)/float64(len(results))))
		fmt.Fprintf(&b, "  Mean empirical:         %s\n", percent(meanEmpirical/float64(len(results))))
	}

	return b.String()
}

// MeanEmpirical returns the mean empirical probability across results, zero
// for an empty set.
func MeanEmpirical(results []models.ValidationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.EmpiricalProbability
	}
	return sum / float64(len(results))
}

// CountPassed returns how many results passed validation.
func CountPassed(results []models.ValidationResult) int {
	passed := 0
	for _, r := range results {
		if r.ValidationPassed {
			passed++
		}
	}
	return passed
}

func percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// PlotSeries is the numeric series a rendering collaborator needs to draw
// tracking error against the bound. Rendering itself happens elsewhere.
type PlotSeries struct {
	Time          []float64 `json:"time"`
	TrackingError []float64 `json:"tracking_error"`
	Bound         []float64 `json:"bound"`
}

// Series extracts the per-sample plot series for one trajectory. The bound
// column repeats delta_r so the renderer can draw a flat envelope.
func Series(traj models.Trajectory, bound models.TheoreticalBound) PlotSeries {
	n := len(traj.Samples)
	s := PlotSeries{
		Time:          make([]float64, n),
		TrackingError: make([]float64, n),
		Bound:         make([]float64, n),
	}
	for i, sample := range traj.Samples {
		s.Time[i] = sample.Time
		s.TrackingError[i] = sample.TrackingError()
		s.Bound[i] = bound.DeltaR
	}
	return s
}
