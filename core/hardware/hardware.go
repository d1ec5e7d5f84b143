// Package hardware declares the collaborator interfaces the dosing core
// drives. Implementations live in infra (serial drivers) and simulator.
package hardware

import (
	"fmt"
	"time"
)

// Balance is a precision balance. Read returns the current mass in grams,
// the instrument's native unit.
type Balance interface {
	Tare() error
	Read() (float64, error)
}

// Motion positions the dispensing head in the XY plane.
type Motion interface {
	MoveTo(x, y float64) error
	Home() error
}

// Gate controls the solid-doser dispense mechanism.
type Gate interface {
	OpenGate() error
	CloseGate() error
	RunFeedMotor(d time.Duration) error
}

// ServoController drives hobby servos on numbered channels.
// Callers step large moves themselves; SetAngle commands one position.
type ServoController interface {
	SetAngle(channel int, angle float64) error
}

// DeviceError wraps a communication or actuation failure from a collaborator.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewDeviceError builds a DeviceError for the given device and operation.
func NewDeviceError(device, op string, err error) *DeviceError {
	return &DeviceError{Device: device, Op: op, Err: err}
}
