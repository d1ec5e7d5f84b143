// Package motionbounds validates target coordinates against machine travel
// limits before any move is issued.
package motionbounds

import "fmt"

// AxisRange is an inclusive [Low, High] travel limit for one axis.
type AxisRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies within the range.
func (r AxisRange) Contains(v float64) bool { return v >= r.Low && v <= r.High }

// Bounds holds per-axis travel limits and the machine step resolution.
type Bounds struct {
	X      AxisRange `json:"x"`
	Y      AxisRange `json:"y"`
	Z      AxisRange `json:"z"`
	StepMM float64   `json:"step_mm"`
}

// OutOfBoundsError names the offending axis and the limit violated.
type OutOfBoundsError struct {
	Axis  string
	Value float64
	Low   float64
	High  float64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("axis %s: %.3f outside [%.3f, %.3f]", e.Axis, e.Value, e.Low, e.High)
}

// Checker validates coordinates against a fixed set of bounds.
type Checker struct {
	bounds Bounds
}

// NewChecker creates a Checker for the given machine bounds.
func NewChecker(b Bounds) *Checker { return &Checker{bounds: b} }

// Validate checks an XY target. The first axis out of range is reported.
func (c *Checker) Validate(x, y float64) error {
	if !c.bounds.X.Contains(x) {
		return &OutOfBoundsError{Axis: "x", Value: x, Low: c.bounds.X.Low, High: c.bounds.X.High}
	}
	if !c.bounds.Y.Contains(y) {
		return &OutOfBoundsError{Axis: "y", Value: y, Low: c.bounds.Y.Low, High: c.bounds.Y.High}
	}
	return nil
}

// ValidateXYZ checks a full XYZ target.
func (c *Checker) ValidateXYZ(x, y, z float64) error {
	if err := c.Validate(x, y); err != nil {
		return err
	}
	if !c.bounds.Z.Contains(z) {
		return &OutOfBoundsError{Axis: "z", Value: z, Low: c.bounds.Z.Low, High: c.bounds.Z.High}
	}
	return nil
}
