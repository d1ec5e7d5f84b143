package dosing

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// CalibrationPoint is one timed dispense of a multi-point calibration
// series.
type CalibrationPoint struct {
	ObservedMg float64       `json:"observed_mg" yaml:"observed_mg"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// FitRate estimates the flow rate from several timed dispenses using a
// least-squares regression of mass on elapsed time through the origin.
// A single point degenerates to observed/elapsed. The fitted rate replaces
// the stored one.
func (m *FlowRateModel) FitRate(points []CalibrationPoint) (float64, error) {
	if len(points) == 0 {
		return 0, &InvalidCalibrationError{Reason: "no calibration points"}
	}
	ts := make([]float64, 0, len(points))
	ms := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Elapsed <= 0 {
			return 0, &InvalidCalibrationError{Reason: "elapsed time must be positive"}
		}
		if p.ObservedMg <= 0 {
			return 0, &InvalidCalibrationError{Reason: "observed mass must be positive"}
		}
		ts = append(ts, p.Elapsed.Seconds())
		ms = append(ms, p.ObservedMg)
	}
	_, rate := stat.LinearRegression(ts, ms, nil, true)
	if err := m.SetRate(rate); err != nil {
		return 0, err
	}
	return rate, nil
}
