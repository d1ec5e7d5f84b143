package station

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/labkit/microdoser/core/dosing"
	"github.com/labkit/microdoser/core/geometry"
	"github.com/labkit/microdoser/core/hardware"
	"github.com/labkit/microdoser/core/loader"
	"github.com/labkit/microdoser/core/motionbounds"
)

type fakeBalance struct {
	mu       sync.Mutex
	readings []float64
	idx      int
	tares    int
	failRead error
}

func (b *fakeBalance) Read() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRead != nil {
		return 0, b.failRead
	}
	if len(b.readings) == 0 {
		return 0, nil
	}
	v := b.readings[b.idx]
	if b.idx < len(b.readings)-1 {
		b.idx++
	}
	return v, nil
}

func (b *fakeBalance) Tare() error {
	b.mu.Lock()
	b.tares++
	b.mu.Unlock()
	return nil
}

type fakeMotion struct {
	moves int
	homed bool
}

func (m *fakeMotion) MoveTo(x, y float64) error { m.moves++; return nil }
func (m *fakeMotion) Home() error               { m.homed = true; return nil }

type fakeGate struct {
	open    bool
	runs    []time.Duration
	failOn  int // 1-based run index that fails; 0 never
	block   chan struct{}
	started chan struct{}
}

func (g *fakeGate) OpenGate() error  { g.open = true; return nil }
func (g *fakeGate) CloseGate() error { g.open = false; return nil }
func (g *fakeGate) RunFeedMotor(d time.Duration) error {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
	g.runs = append(g.runs, d)
	if g.failOn > 0 && len(g.runs) == g.failOn {
		return hardware.NewDeviceError("feed_motor", "run", errors.New("stalled"))
	}
	return nil
}

type fakeServos struct{}

func (fakeServos) SetAngle(int, float64) error { return nil }

func testLoader() *loader.PlateLoader {
	params := loader.Params{
		LiftChannels:   [2]int{0, 1},
		LidChannel:     2,
		LiftUpAngle:    90,
		LidOpenAngle:   100,
		LidClosedAngle: 10,
		StepDegrees:    30,
	}
	profile := loader.Profile{Name: "shallow_plate", PlateSafeAngle: 5, LidSafeAngle: 40}
	return loader.New(fakeServos{}, params, profile, nil)
}

func testDoser(motion *fakeMotion, gate *fakeGate, rate float64) *dosing.PositioningDoser {
	plate := geometry.PlateGeometry{SpacingMM: 9, Rows: 8, Cols: 12}
	bounds := motionbounds.NewChecker(motionbounds.Bounds{
		X: motionbounds.AxisRange{Low: 0, High: 400},
		Y: motionbounds.AxisRange{Low: 0, High: 300},
	})
	return dosing.NewPositioningDoser(plate, bounds, motion, gate, dosing.NewFlowRateModel(rate), nil)
}

func newTestStation(t *testing.T, balance *fakeBalance, gate *fakeGate, opts Options) *MicroDoser {
	t.Helper()
	m, err := New(balance, testLoader(), testDoser(&fakeMotion{}, gate, 2.0), opts, nil, nil, nil)
	if err != nil {
		t.Fatalf("new station: %v", err)
	}
	return m
}

func TestLoadUnloadRoundTrip(t *testing.T) {
	balance := &fakeBalance{}
	m := newTestStation(t, balance, &fakeGate{}, Options{AutoTareOnLoad: true})
	if err := m.LoadPlate(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if balance.tares != 1 {
		t.Fatalf("expected auto-tare, got %d tares", balance.tares)
	}
	if !m.GetStatus().PlateLoaded {
		t.Fatalf("status not loaded")
	}
	if err := m.UnloadPlate(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	st := m.GetStatus()
	if st.PlateLoaded || st.Busy {
		t.Fatalf("residual state after round trip: %+v", st)
	}
}

func TestDoubleLoadFails(t *testing.T) {
	m := newTestStation(t, &fakeBalance{}, &fakeGate{}, Options{})
	if err := m.LoadPlate(); err != nil {
		t.Fatalf("first load: %v", err)
	}
	var ise *loader.InvalidStateError
	if err := m.LoadPlate(); !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if err := m.LoadPlate(); !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError again, got %v", err)
	}
}

func TestUnloadWithoutPlate(t *testing.T) {
	m := newTestStation(t, &fakeBalance{}, &fakeGate{}, Options{})
	if err := m.UnloadPlate(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestDoseToWell(t *testing.T) {
	balance := &fakeBalance{readings: []float64{0.0000, 0.0052}}
	gate := &fakeGate{}
	m := newTestStation(t, balance, gate, Options{})
	res, err := m.DoseToWell("A1", 5.0, true)
	if err != nil {
		t.Fatalf("dose: %v", err)
	}
	if math.Abs(res.ActualMg-5.2) > 1e-9 {
		t.Fatalf("actual %v", res.ActualMg)
	}
	if math.Abs(res.ErrorMg-0.2) > 1e-9 {
		t.Fatalf("error %v", res.ErrorMg)
	}
	if !res.Verified {
		t.Fatalf("result not verified")
	}
	if len(gate.runs) != 1 || gate.runs[0] != 2500*time.Millisecond {
		t.Fatalf("feed runs %v", gate.runs)
	}
}

func TestDoseToWellUnverified(t *testing.T) {
	balance := &fakeBalance{readings: []float64{0.0100, 0.0152}}
	m := newTestStation(t, balance, &fakeGate{}, Options{})
	res, err := m.DoseToWell("A1", 5.0, false)
	if err != nil {
		t.Fatalf("dose: %v", err)
	}
	if res.Verified {
		t.Fatalf("unverified dose flagged verified")
	}
	if res.ActualMg != 0 || res.ErrorMg != 0 {
		t.Fatalf("unverified dose reported observations: %+v", res)
	}
}

func TestDoseWeighingOnly(t *testing.T) {
	m, err := New(&fakeBalance{}, testLoader(), nil, Options{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := m.DoseToWell("A1", 5.0, true); !errors.Is(err, ErrNoDoser) {
		t.Fatalf("expected ErrNoDoser, got %v", err)
	}
	// Weighing still works without a doser.
	if _, err := m.WeighWell("A1"); err != nil {
		t.Fatalf("weigh: %v", err)
	}
}

func TestDoseBusyGate(t *testing.T) {
	balance := &fakeBalance{readings: []float64{0, 0.005}}
	gate := &fakeGate{block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := newTestStation(t, balance, gate, Options{})
	done := make(chan error, 1)
	go func() {
		_, err := m.DoseToWell("A1", 5.0, true)
		done <- err
	}()
	<-gate.started
	if !m.GetStatus().Busy {
		t.Fatalf("status not busy during dose")
	}
	if _, err := m.DoseToWell("A2", 5.0, true); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(gate.block)
	if err := <-done; err != nil {
		t.Fatalf("first dose: %v", err)
	}
	if m.GetStatus().Busy {
		t.Fatalf("busy flag stuck")
	}
}

func TestAutoCalibrate(t *testing.T) {
	balance := &fakeBalance{readings: []float64{0.0, 0.010}}
	gate := &fakeGate{}
	doser := testDoser(&fakeMotion{}, gate, 0)
	m, err := New(balance, testLoader(), doser, Options{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rate, err := m.AutoCalibrate(5*time.Second, doser)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if math.Abs(rate-2.0) > 1e-9 {
		t.Fatalf("rate %v", rate)
	}
	if m.GetStatus().FlowRateMgPerS != rate {
		t.Fatalf("status rate %v", m.GetStatus().FlowRateMgPerS)
	}
}

func TestShutdownUnloadsAndCompletes(t *testing.T) {
	balance := &fakeBalance{}
	m := newTestStation(t, balance, &fakeGate{}, Options{})
	if err := m.LoadPlate(); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.Shutdown()
	st := m.GetStatus()
	if st.PlateLoaded || st.Initialized || st.Busy {
		t.Fatalf("bad post-shutdown status %+v", st)
	}
}
