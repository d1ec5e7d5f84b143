package dosing

import (
	"time"

	"github.com/labkit/microdoser/core/geometry"
	"github.com/labkit/microdoser/core/hardware"
	"github.com/labkit/microdoser/core/logger"
	"github.com/labkit/microdoser/core/motionbounds"
)

// PositioningDoser moves the dispensing head over wells and dispenses by
// flow-rate timing. It never weighs; gravimetric verification belongs to
// the station.
type PositioningDoser struct {
	plate  geometry.PlateGeometry
	bounds *motionbounds.Checker
	motion hardware.Motion
	gate   hardware.Gate
	model  *FlowRateModel
	log    logger.Logger
}

// NewPositioningDoser wires geometry, bounds checking and the motion and
// gate collaborators together.
func NewPositioningDoser(plate geometry.PlateGeometry, bounds *motionbounds.Checker, motion hardware.Motion, gate hardware.Gate, model *FlowRateModel, log logger.Logger) *PositioningDoser {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &PositioningDoser{plate: plate, bounds: bounds, motion: motion, gate: gate, model: model, log: log}
}

// Model exposes the flow-rate model for calibration.
func (d *PositioningDoser) Model() *FlowRateModel { return d.model }

// PositionAt resolves the well coordinate, validates it against the machine
// bounds and issues a single move. Geometry and bounds errors pass through
// untranslated; no move is issued on rejection.
func (d *PositioningDoser) PositionAt(well string) error {
	x, y, err := d.plate.Coordinate(well)
	if err != nil {
		return err
	}
	if err := d.bounds.Validate(x, y); err != nil {
		return err
	}
	d.log.Debugf("positioning at %s -> (%.2f, %.2f)", well, x, y)
	return d.motion.MoveTo(x, y)
}

// Dispense opens the gate, runs the feed motor for the duration computed
// from the target mass, and closes the gate on every exit path.
func (d *PositioningDoser) Dispense(targetMg float64) (dur time.Duration, err error) {
	dur, err = d.model.DurationFor(targetMg)
	if err != nil {
		return 0, err
	}
	if err = d.gate.OpenGate(); err != nil {
		return dur, err
	}
	defer func() {
		if cerr := d.gate.CloseGate(); cerr != nil {
			d.log.Errorf("gate close failed: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()
	d.log.Debugf("dispensing %.2f mg over %s", targetMg, dur)
	err = d.gate.RunFeedMotor(dur)
	return dur, err
}

// DispenseFor runs the feed for a fixed caller-chosen duration, with the
// same guaranteed gate restoration as Dispense. Used by calibration.
func (d *PositioningDoser) DispenseFor(dur time.Duration) (err error) {
	if err = d.gate.OpenGate(); err != nil {
		return err
	}
	defer func() {
		if cerr := d.gate.CloseGate(); cerr != nil {
			d.log.Errorf("gate close failed: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()
	err = d.gate.RunFeedMotor(dur)
	return err
}

// Calibrate updates the flow-rate model from a timed dispense.
func (d *PositioningDoser) Calibrate(observedMg float64, elapsed time.Duration) (float64, error) {
	return d.model.Calibrate(observedMg, elapsed)
}

// Rate reports the current flow rate in mg/s.
func (d *PositioningDoser) Rate() float64 { return d.model.Rate() }

// Home returns the positioning hardware to its home position.
func (d *PositioningDoser) Home() error { return d.motion.Home() }

// Shutdown leaves the mechanism in its resting state: gate closed.
func (d *PositioningDoser) Shutdown() error { return d.gate.CloseGate() }
