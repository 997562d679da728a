package models

// CalibrationParams holds the conformal calibration of a learned Koopman
// embedding. Quantiles are supplied by an external calibration step; this
// service only consumes them.
type CalibrationParams struct {
	// ForwardQuantile is the empirical (1-alpha/K)-quantile of the forward
	// embedding approximation error.
	ForwardQuantile float64 `yaml:"forwardQuantile" json:"forward_quantile"`
	// InverseQuantile is the empirical (1-beta)-quantile of the inverse
	// embedding reconstruction error.
	InverseQuantile float64 `yaml:"inverseQuantile" json:"inverse_quantile"`
	// Gamma is the Lyapunov contraction factor of the closed loop, in (0,1).
	Gamma float64 `yaml:"gamma" json:"gamma"`
	// Rho is a robustification margin added to the per-step disturbance bound.
	Rho float64 `yaml:"rho" json:"rho"`
	// CV is the empirical conformal variance, used only for diagnostics.
	CV float64 `yaml:"cv" json:"cv"`
	// K is the prediction horizon in embedding steps before re-anchoring.
	K int `yaml:"k" json:"k"`
	// Alpha and Beta are the forward/inverse failure probabilities, in (0,1)
	// with Alpha+Beta < 1.
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
}

// TheoreticalBound is the closed-form guarantee derived from a calibration.
type TheoreticalBound struct {
	// DeltaR is the worst-case steady-state tracking-error radius in metres.
	DeltaR float64 `json:"delta_r"`
	// Probability is the guaranteed coverage 1 - alpha - beta.
	Probability float64 `json:"probability"`
}
