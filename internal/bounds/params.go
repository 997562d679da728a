package bounds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

// LoadParams reads a calibration parameter file. The file is a flat YAML
// record of the calibration fields; loaded parameters are validated before
// being returned.
func LoadParams(path string) (models.CalibrationParams, error) {
	if path == "" {
		return models.CalibrationParams{}, fmt.Errorf("calibration path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.CalibrationParams{}, fmt.Errorf("calibration file %s not found: %w", path, err)
		}
		return models.CalibrationParams{}, fmt.Errorf("read calibration: %w", err)
	}

	var params models.CalibrationParams
	if err := yaml.Unmarshal(data, &params); err != nil {
		return models.CalibrationParams{}, fmt.Errorf("parse calibration: %w", err)
	}
	if err := ValidateParams(params); err != nil {
		return models.CalibrationParams{}, err
	}
	return params, nil
}
