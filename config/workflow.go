package config

import "github.com/labkit/microdoser/core/station"

// WorkflowConfig holds the dosing workflow flags. ToleranceMg and
// MaxIterations are reserved for an iterative-dosing mode.
type WorkflowConfig struct {
	AutoTareOnLoad      bool    `json:"auto_tare_on_load"`
	VerifyMassAfterDose bool    `json:"verify_mass_after_dose"`
	ToleranceMg         float64 `json:"tolerance_mg"`
	MaxIterations       int     `json:"max_iterations"`
	InitialFlowRateMgS  float64 `json:"initial_flow_rate_mg_s"`
}

// SetDefaults applies sane defaults.
func (c *WorkflowConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 3
	}
}

// Options converts the section into station options.
func (c WorkflowConfig) Options() station.Options {
	return station.Options{
		AutoTareOnLoad:  c.AutoTareOnLoad,
		VerifyAfterDose: c.VerifyMassAfterDose,
		ToleranceMg:     c.ToleranceMg,
		MaxIterations:   c.MaxIterations,
	}
}
