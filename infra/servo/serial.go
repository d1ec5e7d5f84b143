// Package servo drives hobby servos through a serial servo controller
// board that accepts per-channel angle commands.
package servo

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/labkit/microdoser/core/hardware"
)

const readTimeout = 1 * time.Second

// SerialController sends "S<channel> <angle>" commands, one per line,
// and expects an "ok" acknowledgement.
type SerialController struct {
	port   serial.Port
	reader *bufio.Reader
}

// Open connects to the servo controller board.
func Open(portName string, baud int) (*SerialController, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, hardware.NewDeviceError("servo", "open", err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, hardware.NewDeviceError("servo", "open", err)
	}
	return &SerialController{port: port, reader: bufio.NewReader(port)}, nil
}

// SetAngle commands one channel to the given angle in degrees.
func (c *SerialController) SetAngle(channel int, angle float64) error {
	if angle < 0 || angle > 180 {
		return hardware.NewDeviceError("servo", "set_angle",
			fmt.Errorf("angle %.1f outside 0..180", angle))
	}
	cmd := fmt.Sprintf("S%d %.1f\n", channel, angle)
	if _, err := c.port.Write([]byte(cmd)); err != nil {
		return hardware.NewDeviceError("servo", "set_angle", err)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return hardware.NewDeviceError("servo", "set_angle", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(line), "ok") {
		return hardware.NewDeviceError("servo", "set_angle",
			fmt.Errorf("controller replied %q", strings.TrimSpace(line)))
	}
	return nil
}

// Close releases the serial port.
func (c *SerialController) Close() error {
	return c.port.Close()
}
