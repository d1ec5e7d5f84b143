package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/labkit/microdoser/core/metrics"
)

// PromSink records dose outcomes in Prometheus metrics.
type PromSink struct {
	doses    *prometheus.CounterVec
	errorMg  *prometheus.HistogramVec
	flowRate prometheus.Gauge
	plates   *prometheus.CounterVec
}

// NewPromSink registers dose metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	doses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "microdoser_sink_doses_total",
		Help: "Total number of dose attempts",
	}, []string{"verified", "failed"})
	errorMg := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "microdoser_sink_dose_error_mg",
		Help:    "Absolute dosing error in milligrams",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
	}, []string{"verified"})
	flowRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "microdoser_sink_flow_rate_mg_per_s",
		Help: "Calibrated powder flow rate",
	})
	plates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "microdoser_sink_plate_events_total",
		Help: "Plate load and unload transitions",
	}, []string{"action"})

	if err := reg.Register(doses); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			doses = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(errorMg); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			errorMg = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(flowRate); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			flowRate = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(plates); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			plates = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{doses: doses, errorMg: errorMg, flowRate: flowRate, plates: plates}, nil
}

// RecordDose increments the dose counter and observes the error histogram.
func (s *PromSink) RecordDose(recs []coremetrics.DoseRecord) error {
	for _, r := range recs {
		s.doses.WithLabelValues(strconv.FormatBool(r.Verified), strconv.FormatBool(r.Failed)).Inc()
		if r.Verified && !r.Failed {
			err := r.ErrorMg
			if err < 0 {
				err = -err
			}
			s.errorMg.WithLabelValues("true").Observe(err)
		}
	}
	return nil
}

// RecordCalibration updates the flow-rate gauge.
func (s *PromSink) RecordCalibration(ev coremetrics.CalibrationEvent) error {
	s.flowRate.Set(ev.RateMgPerS)
	return nil
}

// RecordPlateEvent counts plate transitions by action.
func (s *PromSink) RecordPlateEvent(ev coremetrics.PlateEvent) error {
	s.plates.WithLabelValues(ev.Action).Inc()
	return nil
}
