package simulator

import (
	"sync"
	"time"
)

// SimBalance reads the rig's pan mass relative to the last tare.
type SimBalance struct {
	rig *Rig
}

func (b *SimBalance) Tare() error {
	b.rig.mu.Lock()
	b.rig.tareOffset = b.rig.massGrams
	b.rig.mu.Unlock()
	return nil
}

func (b *SimBalance) Read() (float64, error) {
	b.rig.mu.Lock()
	defer b.rig.mu.Unlock()
	return b.rig.massGrams - b.rig.tareOffset, nil
}

// SimMotion tracks the commanded position without moving anything.
type SimMotion struct {
	mu   sync.Mutex
	X, Y float64
	home bool
}

func (m *SimMotion) MoveTo(x, y float64) error {
	m.mu.Lock()
	m.X, m.Y = x, y
	m.home = false
	m.mu.Unlock()
	return nil
}

func (m *SimMotion) Home() error {
	m.mu.Lock()
	m.X, m.Y = 0, 0
	m.home = true
	m.mu.Unlock()
	return nil
}

// Position returns the last commanded coordinates.
func (m *SimMotion) Position() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.X, m.Y
}

// SimGate feeds simulated powder onto the rig's balance while open.
type SimGate struct {
	rig *Rig
}

func (g *SimGate) OpenGate() error {
	g.rig.mu.Lock()
	g.rig.gateOpen = true
	g.rig.mu.Unlock()
	return nil
}

func (g *SimGate) CloseGate() error {
	g.rig.mu.Lock()
	g.rig.gateOpen = false
	g.rig.mu.Unlock()
	return nil
}

func (g *SimGate) RunFeedMotor(d time.Duration) error {
	if g.rig.FeedScale > 0 {
		time.Sleep(time.Duration(float64(d) * g.rig.FeedScale))
	}
	g.rig.dispense(d)
	return nil
}

// SimServos records commanded angles per channel.
type SimServos struct {
	mu     sync.Mutex
	angles map[int]float64
}

func (s *SimServos) SetAngle(channel int, angle float64) error {
	s.mu.Lock()
	s.angles[channel] = angle
	s.mu.Unlock()
	return nil
}

// Angle returns the last commanded angle for a channel.
func (s *SimServos) Angle(channel int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angles[channel]
}
