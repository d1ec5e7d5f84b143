package station

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dosesTotal      *prometheus.CounterVec
	doseErrorMg     prometheus.Histogram
	balanceReads    prometheus.Counter
	plateTransits   *prometheus.CounterVec
	dispenseSeconds prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Counter, *prometheus.CounterVec, prometheus.Histogram) {
	doses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doses_total",
			Help: "Number of dose attempts",
		},
		[]string{"outcome"},
	)
	errMg := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dose_error_mg",
			Help:    "Absolute gravimetric dosing error in milligrams",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
	)
	reads := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_reads_total",
			Help: "Number of balance readings taken",
		},
	)
	plates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plate_transitions_total",
			Help: "Plate load and unload transitions",
		},
		[]string{"action"},
	)
	disp := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispense_duration_seconds",
			Help:    "Open-loop dispense actuation duration",
			Buckets: prometheus.DefBuckets,
		},
	)
	return doses, errMg, reads, plates, disp
}

func init() {
	dosesTotal, doseErrorMg, balanceReads, plateTransits, dispenseSeconds = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers station metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dosesTotal, doseErrorMg, balanceReads, plateTransits, dispenseSeconds)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dosesTotal, doseErrorMg, balanceReads, plateTransits, dispenseSeconds = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
