// Package app wires configuration into a running dosing station: hardware
// drivers or the simulator, the station orchestrator, telemetry sinks and
// the HTTP surfaces.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labkit/microdoser/api/doses"
	apistation "github.com/labkit/microdoser/api/station"
	"github.com/labkit/microdoser/config"
	"github.com/labkit/microdoser/core/doselog"
	"github.com/labkit/microdoser/core/dosing"
	"github.com/labkit/microdoser/core/hardware"
	"github.com/labkit/microdoser/core/loader"
	coremetrics "github.com/labkit/microdoser/core/metrics"
	"github.com/labkit/microdoser/core/motionbounds"
	"github.com/labkit/microdoser/core/station"
	"github.com/labkit/microdoser/infra/balance"
	"github.com/labkit/microdoser/infra/cnc"
	"github.com/labkit/microdoser/infra/gate"
	"github.com/labkit/microdoser/infra/logger"
	"github.com/labkit/microdoser/infra/metrics"
	"github.com/labkit/microdoser/infra/mqtt"
	"github.com/labkit/microdoser/infra/servo"
	"github.com/labkit/microdoser/internal/eventbus"
	"github.com/labkit/microdoser/simulator"
)

// Service owns the assembled station and its supporting servers.
type Service struct {
	Station *station.MicroDoser
	Doser   *dosing.PositioningDoser
	Store   doselog.Store

	cfg       *config.Config
	bus       *eventbus.Bus
	log       logger.Logger
	publisher *mqtt.TelemetryPublisher
	closers   []func() error
}

// New assembles a Service from the configuration. With cfg.Simulate set the
// hardware layer is replaced by the in-process simulator.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	svc := &Service{cfg: cfg, bus: eventbus.New(), log: logg}

	sink, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}

	bal, motion, gt, servos, err := svc.buildHardware(cfg)
	if err != nil {
		return nil, err
	}

	pl := loader.New(servos, cfg.Loader.Params(), cfg.Loader.Profile(), logger.New("loader"))

	model := dosing.NewFlowRateModel(cfg.Workflow.InitialFlowRateMgS)
	svc.Doser = dosing.NewPositioningDoser(
		cfg.Plate.Geometry(),
		motionbounds.NewChecker(cfg.Machine.Bounds()),
		motion,
		gt,
		model,
		logger.New("doser"),
	)

	st, err := station.New(bal, pl, svc.Doser, cfg.Workflow.Options(), sink, svc.bus, logger.New("station"))
	if err != nil {
		return nil, fmt.Errorf("station: %w", err)
	}
	svc.Station = st

	store, err := buildLogStore(cfg.DoseLog)
	if err != nil {
		return nil, err
	}
	svc.Store = store
	st.SetLogStore(store)
	svc.closers = append(svc.closers, store.Close)

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewTelemetryPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		svc.publisher = pub
		go pub.Run(svc.bus.Subscribe())
	}
	return svc, nil
}

func buildSink(cfg *config.Config) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}

func (s *Service) buildHardware(cfg *config.Config) (hardware.Balance, hardware.Motion, hardware.Gate, hardware.ServoController, error) {
	if cfg.Simulate {
		rate := cfg.Workflow.InitialFlowRateMgS
		if rate <= 0 {
			rate = 2.0
		}
		rig := simulator.NewRig(rate)
		s.log.Infof("running against simulated hardware (flow %.2f mg/s)", rate)
		return rig.Balance(), rig.Motion(), rig.Gate(), rig.Servos(), nil
	}

	bal, err := balance.Open(cfg.Balance.Port, cfg.Balance.Baud)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("balance: %w", err)
	}
	s.closers = append(s.closers, bal.Close)

	motion, err := cnc.Open(cfg.CNC.Port, cfg.CNC.Baud, cfg.CNC.FeedRateMM)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("cnc: %w", err)
	}
	s.closers = append(s.closers, motion.Close)

	servos, err := servo.Open(cfg.Servo.Port, cfg.Servo.Baud)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("servo controller: %w", err)
	}
	s.closers = append(s.closers, servos.Close)

	feedMotor, err := gate.OpenFeedMotor(cfg.Gate.FeedMotorPort, cfg.Gate.FeedMotorBaud)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("feed motor: %w", err)
	}
	s.closers = append(s.closers, feedMotor.Close)

	gt := gate.New(servos, cfg.Gate.Channel, cfg.Gate.OpenAngle, cfg.Gate.ClosedAngle, feedMotor)
	return bal, motion, gt, servos, nil
}

func buildLogStore(cfg config.DoseLogConfig) (doselog.Store, error) {
	switch cfg.Backend {
	case "rotating":
		return doselog.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	default:
		return doselog.NewJSONLStore(cfg.Path)
	}
}

// Run starts the HTTP surfaces and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/status", apistation.NewStatusHandler(s.Station))
	mux.Handle("/api/plate/load", apistation.NewPlateHandler(s.Station, "load"))
	mux.Handle("/api/plate/unload", apistation.NewPlateHandler(s.Station, "unload"))
	mux.Handle("/api/dose", apistation.NewDoseHandler(s.Station))
	mux.Handle("/api/weigh", apistation.NewWeighHandler(s.Station))
	mux.Handle("/api/doses", doses.NewLogHandler(s.Store))
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the station down and releases drivers and stores.
func (s *Service) Close() error {
	s.Station.Shutdown()
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	s.bus.Close()
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
