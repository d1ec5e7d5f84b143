package metrics

import coremetrics "github.com/labkit/microdoser/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDose forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDose(recs []coremetrics.DoseRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordDose(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordBalanceRead forwards balance readings to sinks that support them.
func (m *MultiSink) RecordBalanceRead(ev coremetrics.BalanceReadEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.BalanceRecorder); ok {
			if err := rec.RecordBalanceRead(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCalibration forwards calibration events to sinks that support them.
func (m *MultiSink) RecordCalibration(ev coremetrics.CalibrationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CalibrationRecorder); ok {
			if err := rec.RecordCalibration(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPlateEvent forwards plate transitions to sinks that support them.
func (m *MultiSink) RecordPlateEvent(ev coremetrics.PlateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.PlateRecorder); ok {
			if err := rec.RecordPlateEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
