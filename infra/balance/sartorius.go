// Package balance drives a laboratory precision balance over a serial
// line using the SBI print/tare command set.
package balance

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/labkit/microdoser/core/hardware"
	"github.com/labkit/microdoser/infra/logger"
)

const (
	cmdPrint = "\x1bP\r\n"
	cmdTare  = "\x1bT\r\n"

	readTimeout = 2 * time.Second
)

// SerialBalance talks to an SBI-compatible balance (Sartorius Entris and
// similar) over RS-232.
type SerialBalance struct {
	port   serial.Port
	reader *bufio.Reader
	log    logger.Logger
}

// Open connects to the balance on the given port.
func Open(portName string, baud int) (*SerialBalance, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, hardware.NewDeviceError("balance", "open", err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, hardware.NewDeviceError("balance", "open", err)
	}
	return &SerialBalance{
		port:   port,
		reader: bufio.NewReader(port),
		log:    logger.New("balance"),
	}, nil
}

// Tare zeroes the balance. The SBI tare command gives no reply; a short
// settle delay covers the mechanical zeroing.
func (b *SerialBalance) Tare() error {
	if _, err := b.port.Write([]byte(cmdTare)); err != nil {
		return hardware.NewDeviceError("balance", "tare", err)
	}
	time.Sleep(500 * time.Millisecond)
	return nil
}

// Read requests a weight print and parses the reply in grams.
func (b *SerialBalance) Read() (float64, error) {
	if _, err := b.port.Write([]byte(cmdPrint)); err != nil {
		return 0, hardware.NewDeviceError("balance", "read", err)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		return 0, hardware.NewDeviceError("balance", "read", err)
	}
	grams, err := ParseWeight(line)
	if err != nil {
		return 0, hardware.NewDeviceError("balance", "read", err)
	}
	b.log.Debugf("balance read: %.4f g", grams)
	return grams, nil
}

// Close releases the serial port.
func (b *SerialBalance) Close() error {
	return b.port.Close()
}

// ParseWeight extracts the mass in grams from an SBI print line such as
// "+   0.0052 g" or "N     -  1.2 g". An unstable reading still parses;
// callers decide whether to wait for settling.
func ParseWeight(line string) (float64, error) {
	s := strings.TrimSpace(line)
	if strings.Contains(strings.ToUpper(s), "ERR") {
		return 0, fmt.Errorf("balance error reply %q", line)
	}
	s = strings.TrimSuffix(s, "g")
	s = strings.TrimSpace(s)
	// Strip the status prefix some firmwares emit before the sign.
	if i := strings.IndexAny(s, "+-0123456789."); i > 0 {
		s = s[i:]
	} else if i < 0 {
		return 0, fmt.Errorf("no numeric weight in %q", line)
	}
	// The sign can be separated from the digits by spaces.
	sign := 1.0
	switch s[0] {
	case '+':
		s = strings.TrimSpace(s[1:])
	case '-':
		sign = -1
		s = strings.TrimSpace(s[1:])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse weight %q: %w", line, err)
	}
	return sign * v, nil
}
