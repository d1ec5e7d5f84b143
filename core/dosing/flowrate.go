// Package dosing converts target masses into open-loop actuation durations
// and drives the positioning and dispense hardware.
package dosing

import (
	"fmt"
	"sync"
	"time"
)

// NotCalibratedError indicates the flow rate is unset or non-positive.
type NotCalibratedError struct {
	Rate float64
}

func (e *NotCalibratedError) Error() string {
	return fmt.Sprintf("flow rate not calibrated (%.3f mg/s)", e.Rate)
}

// InvalidCalibrationError reports a rejected calibration input.
type InvalidCalibrationError struct {
	Reason string
}

func (e *InvalidCalibrationError) Error() string {
	return "invalid calibration: " + e.Reason
}

// FlowRateModel holds the calibrated dispense flow rate in mg/s.
// The rate is mutated only through Calibrate or SetRate and read by every
// dispense.
type FlowRateModel struct {
	mu   sync.Mutex
	rate float64
}

// NewFlowRateModel creates a model with an initial rate. Zero means
// uncalibrated; any dispense before calibration fails.
func NewFlowRateModel(initialRate float64) *FlowRateModel {
	return &FlowRateModel{rate: initialRate}
}

// Rate returns the current flow rate in mg/s.
func (m *FlowRateModel) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// SetRate replaces the stored rate. Non-positive rates are rejected.
func (m *FlowRateModel) SetRate(rate float64) error {
	if rate <= 0 {
		return &InvalidCalibrationError{Reason: fmt.Sprintf("rate must be positive, got %.3f", rate)}
	}
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
	return nil
}

// DurationFor converts a target mass into an actuation duration.
func (m *FlowRateModel) DurationFor(targetMg float64) (time.Duration, error) {
	m.mu.Lock()
	rate := m.rate
	m.mu.Unlock()
	if rate <= 0 {
		return 0, &NotCalibratedError{Rate: rate}
	}
	if targetMg <= 0 {
		return 0, &InvalidCalibrationError{Reason: fmt.Sprintf("target mass must be positive, got %.3f mg", targetMg)}
	}
	return time.Duration(targetMg / rate * float64(time.Second)), nil
}

// Calibrate replaces the stored rate from a single timed dispense: the
// caller actuated for elapsed while independently weighing observedMg.
// The new rate is returned. No plausibility bound is applied.
func (m *FlowRateModel) Calibrate(observedMg float64, elapsed time.Duration) (float64, error) {
	if elapsed <= 0 {
		return 0, &InvalidCalibrationError{Reason: "elapsed time must be positive"}
	}
	if observedMg <= 0 {
		return 0, &InvalidCalibrationError{Reason: "observed mass must be positive"}
	}
	rate := observedMg / elapsed.Seconds()
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
	return rate, nil
}
