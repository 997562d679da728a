package models

import "math"

// Vec3 is a position in metres.
type Vec3 [3]float64

// Dist returns the Euclidean distance between two positions.
func (v Vec3) Dist(o Vec3) float64 {
	dx := v[0] - o[0]
	dy := v[1] - o[1]
	dz := v[2] - o[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// TrajectorySample is one recorded timestep of a flight.
type TrajectorySample struct {
	// Time in seconds since the start of the recording.
	Time float64
	// Actual is the measured position, Target the commanded one.
	Actual Vec3
	Target Vec3
}

// TrackingError returns the Euclidean distance between actual and target
// position at this timestep.
func (s TrajectorySample) TrackingError() float64 {
	return s.Actual.Dist(s.Target)
}

// Trajectory is a time-ascending sequence of samples from one recording.
// A loaded trajectory is never empty.
type Trajectory struct {
	Source  string
	Samples []TrajectorySample
}

// TrackingErrors returns the per-sample tracking error series.
func (t Trajectory) TrackingErrors() []float64 {
	errs := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		errs[i] = s.TrackingError()
	}
	return errs
}
