// Package loader sequences the three-servo plate loading mechanism: two
// synchronized lift servos and one lid servo, ordered so the lid and lifts
// never mechanically interfere.
package loader

import (
	"fmt"
	"time"

	"github.com/labkit/microdoser/core/hardware"
	"github.com/labkit/microdoser/core/logger"
)

// State is the externally observable loader state.
type State int

const (
	Unloaded State = iota
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Profile is the collision envelope for one plate type. The lid may swing
// past LidSafeAngle only while the lifts sit at or below PlateSafeAngle.
type Profile struct {
	Name           string  `json:"name"`
	PlateSafeAngle float64 `json:"plate_safe_angle"`
	LidSafeAngle   float64 `json:"lid_safe_angle"`
}

// Params fixes servo channels, travel angles and stepping behavior.
type Params struct {
	LiftChannels   [2]int        `json:"lift_channels"`
	LidChannel     int           `json:"lid_channel"`
	LiftUpAngle    float64       `json:"lift_up_angle"`
	LiftDownAngle  float64       `json:"lift_down_angle"`
	LidOpenAngle   float64       `json:"lid_open_angle"`
	LidClosedAngle float64       `json:"lid_closed_angle"`
	StepDegrees    float64       `json:"step_degrees"`
	StepDelay      time.Duration `json:"step_delay"`
}

// InvalidStateError reports a load/unload call in the wrong state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

// CollisionError reports a commanded move that would breach the active
// plate profile's collision envelope.
type CollisionError struct {
	Profile  string
	LidAngle float64
	Lift     float64
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("profile %s: lid at %.1f would intersect lifts at %.1f", e.Profile, e.LidAngle, e.Lift)
}

// PlateLoader is the load/unload state machine. The collision profile is
// selected once at construction; changing plate type requires a new loader.
type PlateLoader struct {
	servos  hardware.ServoController
	params  Params
	profile Profile
	log     logger.Logger

	state State
	lid   float64
	lift  float64
}

// New creates a PlateLoader in the Unloaded position with the lid closed
// and the lifts down.
func New(servos hardware.ServoController, params Params, profile Profile, log logger.Logger) *PlateLoader {
	if log == nil {
		log = logger.NopLogger{}
	}
	if params.StepDegrees <= 0 {
		params.StepDegrees = 2
	}
	return &PlateLoader{
		servos:  servos,
		params:  params,
		profile: profile,
		log:     log,
		state:   Unloaded,
		lid:     params.LidClosedAngle,
		lift:    params.LiftDownAngle,
	}
}

// State returns the current terminal state.
func (l *PlateLoader) State() State { return l.state }

// Profile returns the active collision profile.
func (l *PlateLoader) Profile() Profile { return l.profile }

// Load raises a plate onto the balance: lid open, then both lifts up.
// Valid only from Unloaded. A hardware failure aborts the sequence and
// leaves the mechanical state ambiguous; the caller must inspect before
// retrying.
func (l *PlateLoader) Load() error {
	if l.state != Unloaded {
		return &InvalidStateError{Op: "load", State: l.state}
	}
	l.log.Infof("loading plate (profile %s)", l.profile.Name)
	if err := l.moveLid(l.params.LidOpenAngle); err != nil {
		return err
	}
	if err := l.moveLifts(l.params.LiftUpAngle); err != nil {
		return err
	}
	l.state = Loaded
	l.log.Infof("plate loaded")
	return nil
}

// Unload reverses Load: lifts down, then lid closed. Valid only from
// Loaded.
func (l *PlateLoader) Unload() error {
	if l.state != Loaded {
		return &InvalidStateError{Op: "unload", State: l.state}
	}
	l.log.Infof("unloading plate")
	if err := l.moveLifts(l.params.LiftDownAngle); err != nil {
		return err
	}
	if err := l.moveLid(l.params.LidClosedAngle); err != nil {
		return err
	}
	l.state = Unloaded
	l.log.Infof("plate unloaded")
	return nil
}

// moveLid steps the lid servo to target after checking the collision
// envelope against the current lift position.
func (l *PlateLoader) moveLid(target float64) error {
	if target > l.profile.LidSafeAngle && l.lift > l.profile.PlateSafeAngle {
		return &CollisionError{Profile: l.profile.Name, LidAngle: target, Lift: l.lift}
	}
	for _, a := range steps(l.lid, target, l.params.StepDegrees) {
		if err := l.servos.SetAngle(l.params.LidChannel, a); err != nil {
			return hardware.NewDeviceError("lid_servo", "set_angle", err)
		}
		l.lid = a
		l.sleep()
	}
	return nil
}

// moveLifts steps both lift servos in lockstep: same target, same step
// count, same inter-step delay, so the plate never tilts. A failure on
// either servo aborts immediately.
func (l *PlateLoader) moveLifts(target float64) error {
	for _, a := range steps(l.lift, target, l.params.StepDegrees) {
		for _, ch := range l.params.LiftChannels {
			if err := l.servos.SetAngle(ch, a); err != nil {
				return hardware.NewDeviceError(fmt.Sprintf("lift_servo_%d", ch), "set_angle", err)
			}
		}
		l.lift = a
		l.sleep()
	}
	return nil
}

func (l *PlateLoader) sleep() {
	if l.params.StepDelay > 0 {
		time.Sleep(l.params.StepDelay)
	}
}

// steps returns the intermediate angles from current to target inclusive
// of the target. An empty slice means no motion is needed.
func steps(current, target, step float64) []float64 {
	if current == target {
		return nil
	}
	dir := 1.0
	if target < current {
		dir = -1
	}
	var out []float64
	for a := current + dir*step; dir*(target-a) > 0; a += dir * step {
		out = append(out, a)
	}
	out = append(out, target)
	return out
}
