package motionbounds

import (
	"errors"
	"testing"
)

func TestValidateInside(t *testing.T) {
	c := NewChecker(Bounds{X: AxisRange{0, 400}, Y: AxisRange{0, 300}})
	if err := c.Validate(0, 0); err != nil {
		t.Fatalf("origin: %v", err)
	}
	if err := c.Validate(400, 300); err != nil {
		t.Fatalf("limits are inclusive: %v", err)
	}
}

func TestValidateOutside(t *testing.T) {
	c := NewChecker(Bounds{X: AxisRange{0, 400}, Y: AxisRange{0, 300}})
	err := c.Validate(450, 10)
	if err == nil {
		t.Fatalf("expected error")
	}
	var oob *OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("expected OutOfBoundsError, got %v", err)
	}
	if oob.Axis != "x" || oob.High != 400 {
		t.Fatalf("wrong axis report %+v", oob)
	}
	err = c.Validate(10, -1)
	if !errors.As(err, &oob) || oob.Axis != "y" {
		t.Fatalf("expected y violation, got %v", err)
	}
}

func TestValidateXYZ(t *testing.T) {
	c := NewChecker(Bounds{X: AxisRange{0, 400}, Y: AxisRange{0, 300}, Z: AxisRange{-50, 0}})
	if err := c.ValidateXYZ(10, 10, -25); err != nil {
		t.Fatalf("inside: %v", err)
	}
	var oob *OutOfBoundsError
	if err := c.ValidateXYZ(10, 10, 5); !errors.As(err, &oob) || oob.Axis != "z" {
		t.Fatalf("expected z violation, got %v", err)
	}
}
