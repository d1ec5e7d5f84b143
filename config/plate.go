package config

import (
	"fmt"

	"github.com/labkit/microdoser/core/geometry"
)

// PlateConfig defines the plate grid: the physical XY of well A1, the
// uniform well spacing and the grid dimensions.
type PlateConfig struct {
	OriginX   float64 `json:"origin_x"`
	OriginY   float64 `json:"origin_y"`
	SpacingMM float64 `json:"spacing_mm"`
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
}

// SetDefaults applies the standard 96-well layout.
func (c *PlateConfig) SetDefaults() {
	if c.SpacingMM == 0 {
		c.SpacingMM = 9.0
	}
	if c.Rows == 0 {
		c.Rows = 8
	}
	if c.Cols == 0 {
		c.Cols = 12
	}
}

// Validate checks mandatory fields.
func (c PlateConfig) Validate() error {
	if c.SpacingMM <= 0 {
		return fmt.Errorf("plate spacing must be positive")
	}
	if c.Rows < 1 || c.Rows > 26 {
		return fmt.Errorf("plate rows must be 1..26, got %d", c.Rows)
	}
	if c.Cols < 1 {
		return fmt.Errorf("plate cols must be positive, got %d", c.Cols)
	}
	return nil
}

// Geometry converts the section into the core plate geometry.
func (c PlateConfig) Geometry() geometry.PlateGeometry {
	return geometry.PlateGeometry{
		OriginX:   c.OriginX,
		OriginY:   c.OriginY,
		SpacingMM: c.SpacingMM,
		Rows:      c.Rows,
		Cols:      c.Cols,
	}
}
