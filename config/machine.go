package config

import (
	"fmt"

	"github.com/labkit/microdoser/core/motionbounds"
)

// MachineConfig defines the travel limits of the positioning machine.
type MachineConfig struct {
	XLow   float64 `json:"x_low"`
	XHigh  float64 `json:"x_high"`
	YLow   float64 `json:"y_low"`
	YHigh  float64 `json:"y_high"`
	ZLow   float64 `json:"z_low"`
	ZHigh  float64 `json:"z_high"`
	StepMM float64 `json:"step_mm"`
}

// Validate checks that each axis range is non-empty.
func (c MachineConfig) Validate() error {
	if c.XHigh <= c.XLow {
		return fmt.Errorf("machine x bounds empty: [%v, %v]", c.XLow, c.XHigh)
	}
	if c.YHigh <= c.YLow {
		return fmt.Errorf("machine y bounds empty: [%v, %v]", c.YLow, c.YHigh)
	}
	if c.ZHigh < c.ZLow {
		return fmt.Errorf("machine z bounds empty: [%v, %v]", c.ZLow, c.ZHigh)
	}
	return nil
}

// Bounds converts the section into core motion bounds.
func (c MachineConfig) Bounds() motionbounds.Bounds {
	return motionbounds.Bounds{
		X:      motionbounds.AxisRange{Low: c.XLow, High: c.XHigh},
		Y:      motionbounds.AxisRange{Low: c.YLow, High: c.YHigh},
		Z:      motionbounds.AxisRange{Low: c.ZLow, High: c.ZHigh},
		StepMM: c.StepMM,
	}
}
