// Package metrics defines the recording interfaces the station uses to
// report dose outcomes. Concrete sinks live in infra/metrics.
package metrics

import "time"

// DoseRecord represents one completed (or failed) dose to be recorded.
type DoseRecord struct {
	BatchID  string
	Well     string
	TargetMg float64
	ActualMg float64
	ErrorMg  float64
	Verified bool
	Duration time.Duration
	Failed   bool
	Time     time.Time
}

// MetricsSink records dose results for observability purposes.
type MetricsSink interface {
	RecordDose(recs []DoseRecord) error
}

// BalanceReadEvent is a single balance reading.
type BalanceReadEvent struct {
	MassGrams float64
	Context   string
	Time      time.Time
}

// BalanceRecorder is implemented by sinks able to record balance readings.
type BalanceRecorder interface {
	RecordBalanceRead(ev BalanceReadEvent) error
}

// CalibrationEvent captures a flow-rate calibration.
type CalibrationEvent struct {
	RateMgPerS float64
	Points     int
	Time       time.Time
}

// CalibrationRecorder records flow-rate calibrations.
type CalibrationRecorder interface {
	RecordCalibration(ev CalibrationEvent) error
}

// PlateEvent captures a plate load or unload transition.
type PlateEvent struct {
	Action string
	Plate  string
	Time   time.Time
}

// PlateRecorder records plate handling transitions.
type PlateRecorder interface {
	RecordPlateEvent(ev PlateEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDose([]DoseRecord) error            { return nil }
func (NopSink) RecordBalanceRead(BalanceReadEvent) error { return nil }
func (NopSink) RecordCalibration(CalibrationEvent) error { return nil }
func (NopSink) RecordPlateEvent(PlateEvent) error        { return nil }
