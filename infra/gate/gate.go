// Package gate implements the dispense mechanism: a servo-actuated gate
// over the well plus a vibratory feed motor that meters powder through it.
package gate

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/labkit/microdoser/core/hardware"
)

// MotorDriver switches the feed motor on and off.
type MotorDriver interface {
	Start() error
	Stop() error
}

// ServoGate drives the gate servo on one channel of a servo controller
// and runs the feeder through a MotorDriver.
type ServoGate struct {
	servos      hardware.ServoController
	channel     int
	openAngle   float64
	closedAngle float64
	motor       MotorDriver
}

// New builds a ServoGate. The gate starts in an unknown position; callers
// should CloseGate before the first dispense.
func New(servos hardware.ServoController, channel int, openAngle, closedAngle float64, motor MotorDriver) *ServoGate {
	return &ServoGate{
		servos:      servos,
		channel:     channel,
		openAngle:   openAngle,
		closedAngle: closedAngle,
		motor:       motor,
	}
}

func (g *ServoGate) OpenGate() error {
	return g.servos.SetAngle(g.channel, g.openAngle)
}

func (g *ServoGate) CloseGate() error {
	return g.servos.SetAngle(g.channel, g.closedAngle)
}

// RunFeedMotor vibrates the feeder for the given duration. The motor is
// always stopped, and a stop failure is reported when the run succeeded.
func (g *ServoGate) RunFeedMotor(d time.Duration) (err error) {
	if err = g.motor.Start(); err != nil {
		return err
	}
	defer func() {
		if stopErr := g.motor.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	time.Sleep(d)
	return nil
}

// SerialFeedMotor switches a feed motor through a serial relay board that
// accepts "M1"/"M0" commands.
type SerialFeedMotor struct {
	port serial.Port
}

// OpenFeedMotor connects to the relay board.
func OpenFeedMotor(portName string, baud int) (*SerialFeedMotor, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, hardware.NewDeviceError("feed_motor", "open", err)
	}
	return &SerialFeedMotor{port: port}, nil
}

func (m *SerialFeedMotor) Start() error { return m.command("M1") }
func (m *SerialFeedMotor) Stop() error  { return m.command("M0") }

func (m *SerialFeedMotor) command(cmd string) error {
	if _, err := m.port.Write([]byte(cmd + "\n")); err != nil {
		op := "stop"
		if strings.HasSuffix(cmd, "1") {
			op = "start"
		}
		return hardware.NewDeviceError("feed_motor", op, fmt.Errorf("write %s: %w", cmd, err))
	}
	return nil
}

// Close releases the serial port.
func (m *SerialFeedMotor) Close() error {
	return m.port.Close()
}
