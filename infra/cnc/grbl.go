// Package cnc drives a GRBL-based XY positioning machine over serial.
package cnc

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/labkit/microdoser/core/hardware"
	"github.com/labkit/microdoser/infra/logger"
)

const (
	readTimeout = 5 * time.Second
	// GRBL resets when the serial port opens; give the controller time
	// to print its banner before the first command.
	wakeDelay = 2 * time.Second

	idlePollInterval = 100 * time.Millisecond
	idleWaitLimit    = 60 * time.Second
)

// GrblMotion positions the dosing head via G-code commands.
type GrblMotion struct {
	port       serial.Port
	reader     *bufio.Reader
	feedRateMM float64
	log        logger.Logger
}

// Open connects to the controller, flushes the reset banner and switches
// to absolute positioning in millimeters.
func Open(portName string, baud int, feedRateMM float64) (*GrblMotion, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, hardware.NewDeviceError("cnc", "open", err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, hardware.NewDeviceError("cnc", "open", err)
	}
	m := &GrblMotion{
		port:       port,
		reader:     bufio.NewReader(port),
		feedRateMM: feedRateMM,
		log:        logger.New("cnc"),
	}
	time.Sleep(wakeDelay)
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, hardware.NewDeviceError("cnc", "open", err)
	}
	for _, cmd := range []string{"G21", "G90"} {
		if err := m.send(cmd); err != nil {
			port.Close()
			return nil, hardware.NewDeviceError("cnc", "open", err)
		}
	}
	return m, nil
}

// MoveTo issues an absolute XY move and blocks until the controller is idle.
func (m *GrblMotion) MoveTo(x, y float64) error {
	var cmd string
	if m.feedRateMM > 0 {
		cmd = fmt.Sprintf("G1 X%.3f Y%.3f F%.1f", x, y, m.feedRateMM)
	} else {
		cmd = fmt.Sprintf("G0 X%.3f Y%.3f", x, y)
	}
	if err := m.send(cmd); err != nil {
		return hardware.NewDeviceError("cnc", "move", err)
	}
	if err := m.waitIdle(); err != nil {
		return hardware.NewDeviceError("cnc", "move", err)
	}
	m.log.Debugf("moved to X%.3f Y%.3f", x, y)
	return nil
}

// Home runs the homing cycle.
func (m *GrblMotion) Home() error {
	if err := m.send("$H"); err != nil {
		return hardware.NewDeviceError("cnc", "home", err)
	}
	if err := m.waitIdle(); err != nil {
		return hardware.NewDeviceError("cnc", "home", err)
	}
	return nil
}

// Close releases the serial port.
func (m *GrblMotion) Close() error {
	return m.port.Close()
}

// send writes one command line and consumes the ok/error acknowledgement.
func (m *GrblMotion) send(cmd string) error {
	if _, err := m.port.Write([]byte(cmd + "\n")); err != nil {
		return err
	}
	for {
		line, err := m.reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "ok":
			return nil
		case strings.HasPrefix(line, "error:"):
			return fmt.Errorf("%s rejected: %s", cmd, line)
		case strings.HasPrefix(line, "ALARM:"):
			return fmt.Errorf("alarm during %s: %s", cmd, line)
		}
		// Startup banners and status pushes are skipped.
	}
}

// waitIdle polls the status report until the planner drains.
func (m *GrblMotion) waitIdle() error {
	deadline := time.Now().Add(idleWaitLimit)
	for time.Now().Before(deadline) {
		if _, err := m.port.Write([]byte("?")); err != nil {
			return err
		}
		line, err := m.reader.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.Contains(line, "Idle") {
			return nil
		}
		if strings.Contains(line, "Alarm") {
			return fmt.Errorf("controller in alarm state: %s", strings.TrimSpace(line))
		}
		time.Sleep(idlePollInterval)
	}
	return fmt.Errorf("move did not complete within %s", idleWaitLimit)
}
