// Package trajectory loads recorded flight trajectories produced by the
// motion-capture logging scripts.
package trajectory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

// record mirrors the JSON layout written by the flight loggers: parallel
// time/pose/control arrays. Some producers name the vectors position/target
// instead of pose/control.
type record struct {
	Time     []float64   `json:"time"`
	Pose     [][]float64 `json:"pose"`
	Position [][]float64 `json:"position"`
	Control  [][]float64 `json:"control"`
	Target   [][]float64 `json:"target"`
}

// Loader parses persisted trajectory records.
type Loader struct{}

// NewLoader creates a trajectory loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a trajectory file.
func (l *Loader) Load(path string) (models.Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Trajectory{}, models.NewDataFormatError(path, "open", err)
	}
	defer f.Close()
	return l.Parse(path, f)
}

// Parse decodes a trajectory record and returns its samples sorted by time.
// Missing fields, non-numeric values, mismatched array lengths, and empty
// sample sets all yield a DataFormatError.
func (l *Loader) Parse(source string, r io.Reader) (models.Trajectory, error) {
	var rec record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rec); err != nil {
		return models.Trajectory{}, models.NewDataFormatError(source, "decode", err)
	}

	actual := rec.Pose
	if actual == nil {
		actual = rec.Position
	}
	target := rec.Control
	if target == nil {
		target = rec.Target
	}

	if len(rec.Time) == 0 {
		return models.Trajectory{}, models.NewDataFormatError(source, "no samples", nil)
	}
	if actual == nil {
		return models.Trajectory{}, models.NewDataFormatError(source, "missing pose/position field", nil)
	}
	if target == nil {
		return models.Trajectory{}, models.NewDataFormatError(source, "missing control/target field", nil)
	}
	if len(actual) != len(rec.Time) || len(target) != len(rec.Time) {
		return models.Trajectory{}, models.NewDataFormatError(source,
			fmt.Sprintf("length mismatch: time=%d pose=%d control=%d", len(rec.Time), len(actual), len(target)), nil)
	}

	samples := make([]models.TrajectorySample, len(rec.Time))
	for i, t := range rec.Time {
		av, err := toVec3(actual[i])
		if err != nil {
			return models.Trajectory{}, models.NewDataFormatError(source, fmt.Sprintf("pose[%d]", i), err)
		}
		tv, err := toVec3(target[i])
		if err != nil {
			return models.Trajectory{}, models.NewDataFormatError(source, fmt.Sprintf("control[%d]", i), err)
		}
		samples[i] = models.TrajectorySample{Time: t, Actual: av, Target: tv}
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Time < samples[j].Time })

	return models.Trajectory{Source: source, Samples: samples}, nil
}

func toVec3(v []float64) (models.Vec3, error) {
	if len(v) != 3 {
		return models.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(v))
	}
	return models.Vec3{v[0], v[1], v[2]}, nil
}
