package models

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid calibration parameter. It names the
// offending field so callers can fix the configuration before retrying.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid calibration: %s %s", e.Field, e.Reason)
}

// NewConfigurationError constructs a ConfigurationError for the given field.
func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// DataFormatError reports a malformed or empty trajectory record. During
// batch validation these are recorded per source, never raised to the caller.
type DataFormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("trajectory %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("trajectory %s: %s: %v", e.Source, e.Reason, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// NewDataFormatError constructs a DataFormatError for the given source.
func NewDataFormatError(source, reason string, err error) error {
	return &DataFormatError{Source: source, Reason: reason, Err: err}
}

// IsDataFormatError reports whether err is (or wraps) a DataFormatError.
func IsDataFormatError(err error) bool {
	var de *DataFormatError
	return errors.As(err, &de)
}
