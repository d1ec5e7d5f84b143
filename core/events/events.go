// Package events defines the station events published on the internal bus.
package events

import "time"

// DoseEvent is published after each dose attempt, verified or not.
type DoseEvent struct {
	BatchID  string
	Well     string
	TargetMg float64
	ActualMg float64
	ErrorMg  float64
	Verified bool
	Err      error
	Time     time.Time
}

// PlateEvent is published on plate load and unload transitions.
type PlateEvent struct {
	Action string // "load" or "unload"
	Plate  string
	Time   time.Time
}

// CalibrationEvent is published when the flow rate changes.
type CalibrationEvent struct {
	RateMgPerS float64
	Points     int
	Time       time.Time
}
