package services

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/koopmanstack/koopman-verify/internal/config"
	"github.com/koopmanstack/koopman-verify/internal/history"
	"github.com/koopmanstack/koopman-verify/internal/models"
	"github.com/koopmanstack/koopman-verify/internal/trajectory"
	"github.com/koopmanstack/koopman-verify/pkg/cache"
)

func testParams() models.CalibrationParams {
	return models.CalibrationParams{
		ForwardQuantile: 0.0858,
		InverseQuantile: 0.135,
		Gamma:           0.9,
		CV:              0.01,
		K:               10,
		Alpha:           0.1,
		Beta:            0.1,
	}
}

func writeTrajectory(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const goodTrajectory = `{
	"time": [0.0, 0.1, 0.2, 0.3],
	"pose": [[0,0,1], [0.1,0,1], [0.2,0,1], [0.1,0,1]],
	"control": [[0,0,1], [0,0,1], [0,0,1], [0,0,1]]
}`

func newTestService(t *testing.T, hist *history.Store) *ValidationService {
	t.Helper()
	svc, err := NewValidationService(
		nil,
		testParams(),
		config.ValidationConfig{Tolerance: 0.05, Policy: "one-sided"},
		2,
		trajectory.NewLoader(),
		hist,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceRun(t *testing.T) {
	dir := t.TempDir()
	good := writeTrajectory(t, dir, "good.json", goodTrajectory)
	bad := writeTrajectory(t, dir, "bad.json", `{"time": [], "pose": [], "control": []}`)

	svc := newTestService(t, nil)

	run, batch, text, err := svc.Run(context.Background(), []string{good, bad})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.ID == "" {
		t.Fatalf("run must carry an ID")
	}
	if run.Total != 1 || run.Passed != 1 || run.Failures != 1 {
		t.Fatalf("unexpected run summary: %+v", run)
	}
	if len(batch.Results) != 1 || len(batch.Failures) != 1 {
		t.Fatalf("unexpected batch shape: %d results, %d failures", len(batch.Results), len(batch.Failures))
	}
	if !strings.Contains(text, "[PASS]") || !strings.Contains(text, "bad.json") {
		t.Fatalf("report incomplete:\n%s", text)
	}
}

func TestServiceRunWithOverride(t *testing.T) {
	dir := t.TempDir()
	good := writeTrajectory(t, dir, "good.json", goodTrajectory)

	svc := newTestService(t, nil)

	// A tiny bound no sample satisfies: the trajectory must now fail.
	override := testParams()
	override.ForwardQuantile = 0.0001
	override.InverseQuantile = 0.0001
	run, batch, _, err := svc.RunWith(context.Background(), override, []string{good})
	if err != nil {
		t.Fatalf("run with override: %v", err)
	}
	if run.Passed != 0 {
		t.Fatalf("override bound should fail the trajectory: %+v", run)
	}
	if len(batch.Results) != 1 || batch.Results[0].ValidationPassed {
		t.Fatalf("unexpected override result: %+v", batch.Results)
	}

	// The service calibration is untouched.
	if svc.Bound().Probability != 0.8 {
		t.Fatalf("override must not mutate the service bound")
	}
}

func TestServiceRunWithRejectsBadOverride(t *testing.T) {
	svc := newTestService(t, nil)
	bad := testParams()
	bad.Gamma = 1.0
	if _, _, _, err := svc.RunWith(context.Background(), bad, nil); !models.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestServiceRecordsHistory(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	hist, err := history.NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	dir := t.TempDir()
	good := writeTrajectory(t, dir, "good.json", goodTrajectory)

	svc := newTestService(t, hist)
	run, _, _, err := svc.Run(context.Background(), []string{good})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	runs, err := svc.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("run not persisted: %+v", runs)
	}

	results, err := svc.RunResults(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("run results: %v", err)
	}
	if len(results) != 1 || results[0].Source != good {
		t.Fatalf("results not persisted: %+v", results)
	}
}

func TestServiceHistoryDisabled(t *testing.T) {
	svc := newTestService(t, nil)
	if _, err := svc.ListRuns(context.Background(), 5); err == nil {
		t.Fatalf("expected error when history is disabled")
	}
}

func TestServiceBound(t *testing.T) {
	svc := newTestService(t, nil)
	bound := svc.Bound()
	if bound.Probability != 0.8 {
		t.Fatalf("expected probability 0.8, got %v", bound.Probability)
	}
	env, err := svc.Envelope()
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if len(env) != 10 {
		t.Fatalf("expected 10 envelope steps, got %d", len(env))
	}
}

func TestServiceSeries(t *testing.T) {
	dir := t.TempDir()
	good := writeTrajectory(t, dir, "good.json", goodTrajectory)

	svc := newTestService(t, nil)
	series, err := svc.Series(good)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series.Time) != 4 || len(series.Bound) != 4 {
		t.Fatalf("unexpected series shape: %+v", series)
	}
}

func TestServiceRejectsBadCalibration(t *testing.T) {
	params := testParams()
	params.Gamma = 1.0
	_, err := NewValidationService(nil, params, config.ValidationConfig{Tolerance: 0.05}, 1, trajectory.NewLoader(), nil)
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	if !models.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestCachingLoader(t *testing.T) {
	dir := t.TempDir()
	path := writeTrajectory(t, dir, "good.json", goodTrajectory)

	loader := NewCachingLoader(trajectory.NewLoader(), cache.New(time.Minute))
	first, err := loader.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Corrupt the file; a fresh cache entry must still serve the parse.
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := loader.Load(path)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if len(first.Samples) != len(second.Samples) {
		t.Fatalf("cache returned different trajectory")
	}
}

func TestCachingLoaderNilCachePassthrough(t *testing.T) {
	base := trajectory.NewLoader()
	if got := NewCachingLoader(base, nil); got != base {
		t.Fatalf("nil cache must return the underlying loader")
	}
}
