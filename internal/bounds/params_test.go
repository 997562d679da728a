package bounds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

func writeCalibration(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParams(t *testing.T) {
	path := writeCalibration(t, `
forwardQuantile: 0.0858
inverseQuantile: 0.135
gamma: 0.9
rho: 0.0
cv: 0.01
k: 10
alpha: 0.1
beta: 0.1
`)
	params, err := LoadParams(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if params.Gamma != 0.9 || params.K != 10 || params.ForwardQuantile != 0.0858 {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestLoadParamsRejectsInvalid(t *testing.T) {
	path := writeCalibration(t, `
forwardQuantile: 0.1
inverseQuantile: 0.1
gamma: 1.2
k: 10
alpha: 0.1
beta: 0.1
`)
	_, err := LoadParams(path)
	if err == nil {
		t.Fatalf("expected error for gamma > 1")
	}
	if !models.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadParamsMissingFile(t *testing.T) {
	if _, err := LoadParams(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
