// Package simulator provides in-process stand-ins for the bench hardware
// so the full dosing workflow can run without a robot attached. The gate
// feeds simulated powder onto the balance at a configurable flow rate.
package simulator

import (
	"math/rand"
	"sync"
	"time"
)

// Rig holds the shared state of a simulated bench: the mass currently on
// the balance pan and the powder flow parameters.
type Rig struct {
	mu sync.Mutex

	massGrams  float64
	tareOffset float64
	gateOpen   bool

	// FlowRateMgPerS is the powder flow while the gate is open and the
	// feed motor runs.
	FlowRateMgPerS float64
	// NoiseMg adds uniform jitter in [-NoiseMg, +NoiseMg] to each
	// dispensed amount. Zero disables it.
	NoiseMg float64
	// FeedScale compresses simulated feed time so tests run fast. A
	// scale of 0 runs feeds instantaneously.
	FeedScale float64

	rng *rand.Rand
}

// NewRig creates a simulated bench with the given flow rate.
func NewRig(flowRateMgPerS float64) *Rig {
	return &Rig{
		FlowRateMgPerS: flowRateMgPerS,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Balance returns the simulated balance.
func (r *Rig) Balance() *SimBalance { return &SimBalance{rig: r} }

// Motion returns the simulated positioning machine.
func (r *Rig) Motion() *SimMotion { return &SimMotion{} }

// Gate returns the simulated dispense gate.
func (r *Rig) Gate() *SimGate { return &SimGate{rig: r} }

// Servos returns the simulated servo controller.
func (r *Rig) Servos() *SimServos { return &SimServos{angles: map[int]float64{}} }

// AddMass places mass directly on the pan, e.g. a plate being loaded.
func (r *Rig) AddMass(grams float64) {
	r.mu.Lock()
	r.massGrams += grams
	r.mu.Unlock()
}

func (r *Rig) dispense(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gateOpen {
		return
	}
	mg := r.FlowRateMgPerS * d.Seconds()
	if r.NoiseMg > 0 {
		mg += (r.rng.Float64()*2 - 1) * r.NoiseMg
	}
	if mg < 0 {
		mg = 0
	}
	r.massGrams += mg / 1000
}
