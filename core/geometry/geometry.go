// Package geometry maps well labels on a microplate to physical XY
// coordinates.
package geometry

import (
	"fmt"
	"strconv"
)

// PlateGeometry describes a plate grid. OriginX/OriginY are the physical
// coordinates of well A1; spacing is uniform in both axes.
type PlateGeometry struct {
	OriginX   float64 `json:"origin_x"`
	OriginY   float64 `json:"origin_y"`
	SpacingMM float64 `json:"spacing_mm"`
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
}

// InvalidWellError reports a malformed or out-of-range well label.
type InvalidWellError struct {
	Well   string
	Reason string
}

func (e *InvalidWellError) Error() string {
	return fmt.Sprintf("invalid well %q: %s", e.Well, e.Reason)
}

// ParseWell splits a label like "B7" into zero-based row and column indices
// without range checking against any particular plate.
func ParseWell(well string) (row, col int, err error) {
	if len(well) < 2 {
		return 0, 0, &InvalidWellError{Well: well, Reason: "label too short"}
	}
	r := well[0]
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < 'A' || r > 'Z' {
		return 0, 0, &InvalidWellError{Well: well, Reason: "row must be a letter"}
	}
	n, convErr := strconv.Atoi(well[1:])
	if convErr != nil || n < 1 {
		return 0, 0, &InvalidWellError{Well: well, Reason: "column must be a positive integer"}
	}
	return int(r - 'A'), n - 1, nil
}

// Coordinate resolves a well label to the physical XY position of its
// center. It fails with InvalidWellError when the label is malformed or
// falls outside the plate grid.
func (g PlateGeometry) Coordinate(well string) (x, y float64, err error) {
	row, col, err := ParseWell(well)
	if err != nil {
		return 0, 0, err
	}
	if row >= g.Rows {
		return 0, 0, &InvalidWellError{Well: well, Reason: fmt.Sprintf("row beyond plate (%d rows)", g.Rows)}
	}
	if col >= g.Cols {
		return 0, 0, &InvalidWellError{Well: well, Reason: fmt.Sprintf("column beyond plate (%d columns)", g.Cols)}
	}
	x = g.OriginX + float64(col)*g.SpacingMM
	y = g.OriginY + float64(row)*g.SpacingMM
	return x, y, nil
}

// WellName formats zero-based indices back into a label like "A1".
func WellName(row, col int) string {
	return fmt.Sprintf("%c%d", 'A'+rune(row), col+1)
}
