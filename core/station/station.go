// Package station hosts the MicroDoser orchestrator: plate handling,
// gravimetric verification and batch dosing over a single physical
// station.
package station

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labkit/microdoser/core/doselog"
	"github.com/labkit/microdoser/core/events"
	"github.com/labkit/microdoser/core/hardware"
	"github.com/labkit/microdoser/core/loader"
	"github.com/labkit/microdoser/core/logger"
	"github.com/labkit/microdoser/core/metrics"
	"github.com/labkit/microdoser/internal/eventbus"
)

// DosingCapability abstracts the optional dosing system attached to the
// station. Variants (CNC plus solid doser, manual positioning, future
// liquid handling) implement this interface; a nil capability degrades the
// station to weighing-only behavior.
type DosingCapability interface {
	PositionAt(well string) error
	Dispense(targetMg float64) (time.Duration, error)
	Home() error
	Shutdown() error
}

// RateReporter is implemented by dosing capabilities that expose their
// current flow rate for status snapshots.
type RateReporter interface {
	Rate() float64
}

// Options are the workflow flags loaded from configuration. ToleranceMg
// and MaxIterations are reserved for an iterative-dosing mode.
type Options struct {
	AutoTareOnLoad  bool
	VerifyAfterDose bool
	ToleranceMg     float64
	MaxIterations   int
}

// MicroDoser coordinates one station acting on one plate at a time. All
// physical sequences run under a single busy gate; concurrent entry points
// fail fast with ErrBusy instead of queueing.
type MicroDoser struct {
	balance hardware.Balance
	loader  *loader.PlateLoader
	doser   DosingCapability
	opts    Options
	sink    metrics.MetricsSink
	bus     eventbus.EventBus
	store   doselog.Store
	log     logger.Logger

	mu          sync.Mutex
	busy        bool
	initialized bool
	lastErr     string
}

// New creates a MicroDoser. Balance and loader are required; doser may be
// nil for a weighing-only station.
func New(balance hardware.Balance, pl *loader.PlateLoader, doser DosingCapability, opts Options, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*MicroDoser, error) {
	if balance == nil || pl == nil {
		return nil, fmt.Errorf("station: balance and loader are required")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	m := &MicroDoser{
		balance:     balance,
		loader:      pl,
		doser:       doser,
		opts:        opts,
		sink:        sink,
		bus:         bus,
		log:         log,
		initialized: true,
	}
	if doser == nil {
		log.Infof("no dosing capability attached (weighing station mode)")
	}
	return m, nil
}

// SetLogStore configures the store used to persist dose records.
func (m *MicroDoser) SetLogStore(store doselog.Store) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// acquire marks the station busy or fails with ErrBusy. The flag is
// checked and set atomically so a caller can never observe a half-finished
// sequence as idle.
func (m *MicroDoser) acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	m.busy = true
	return nil
}

func (m *MicroDoser) release() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *MicroDoser) setLastErr(err error) {
	m.mu.Lock()
	if err != nil {
		m.lastErr = err.Error()
	}
	m.mu.Unlock()
}

// LoadPlate loads a plate onto the balance and tares it when the workflow
// requests auto-tare. Valid only while unloaded.
func (m *MicroDoser) LoadPlate() error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()
	if err := m.loader.Load(); err != nil {
		m.setLastErr(err)
		return err
	}
	plateTransits.WithLabelValues("load").Inc()
	m.publish(events.PlateEvent{Action: "load", Plate: m.loader.Profile().Name, Time: time.Now()})
	m.recordPlate("load")
	if m.opts.AutoTareOnLoad {
		m.log.Infof("taring balance after load")
		if err := m.balance.Tare(); err != nil {
			m.setLastErr(err)
			return err
		}
	}
	return nil
}

// UnloadPlate removes the plate. Calling it without a loaded plate fails
// with ErrNotLoaded, never a silent no-op.
func (m *MicroDoser) UnloadPlate() error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()
	return m.unloadLocked()
}

func (m *MicroDoser) unloadLocked() error {
	if m.loader.State() != loader.Loaded {
		return ErrNotLoaded
	}
	if err := m.loader.Unload(); err != nil {
		m.setLastErr(err)
		return err
	}
	plateTransits.WithLabelValues("unload").Inc()
	m.publish(events.PlateEvent{Action: "unload", Plate: m.loader.Profile().Name, Time: time.Now()})
	m.recordPlate("unload")
	return nil
}

// ReadBalance returns the current balance reading in grams, the
// instrument's native unit.
func (m *MicroDoser) ReadBalance() (float64, error) {
	grams, err := m.balance.Read()
	if err != nil {
		m.setLastErr(err)
		return 0, err
	}
	balanceReads.Inc()
	if br, ok := m.sink.(metrics.BalanceRecorder); ok && m.sink != nil {
		if rerr := br.RecordBalanceRead(metrics.BalanceReadEvent{MassGrams: grams, Time: time.Now()}); rerr != nil {
			m.log.Errorf("balance metrics error: %v", rerr)
		}
	}
	m.log.Debugf("balance reading: %.4f g", grams)
	return grams, nil
}

// TareBalance zeroes the balance reading.
func (m *MicroDoser) TareBalance() error {
	if err := m.balance.Tare(); err != nil {
		m.setLastErr(err)
		return err
	}
	return nil
}

// WeighWell positions over the well when a dosing capability is attached
// and returns the balance reading in grams.
func (m *MicroDoser) WeighWell(well string) (float64, error) {
	if err := m.acquire(); err != nil {
		return 0, err
	}
	defer m.release()
	if m.doser != nil {
		if err := m.doser.PositionAt(well); err != nil {
			m.setLastErr(err)
			return 0, err
		}
	}
	return m.ReadBalance()
}

// DoseToWell doses targetMg into the well with gravimetric verification.
// With verify=false the balance is not re-read after dispensing and the
// result carries Verified=false with zero observed error.
func (m *MicroDoser) DoseToWell(well string, targetMg float64, verify bool) (DoseResult, error) {
	if err := m.acquire(); err != nil {
		return DoseResult{}, err
	}
	defer m.release()
	return m.doseLocked("", well, targetMg, verify)
}

func (m *MicroDoser) doseLocked(batchID, well string, targetMg float64, verify bool) (DoseResult, error) {
	res := DoseResult{
		BatchID:   batchID,
		Well:      well,
		TargetMg:  targetMg,
		Verified:  verify,
		Timestamp: time.Now(),
	}
	if m.doser == nil {
		return res, ErrNoDoser
	}
	m.log.Infof("dosing %.2f mg to well %s", targetMg, well)

	beforeG, err := m.ReadBalance()
	if err != nil {
		return m.finishDose(res, err)
	}
	res.InitialMg = beforeG * 1000

	if err := m.doser.PositionAt(well); err != nil {
		return m.finishDose(res, err)
	}
	dur, err := m.doser.Dispense(targetMg)
	res.Duration = dur
	if err != nil {
		return m.finishDose(res, err)
	}

	if !verify {
		// Without a confirming read the observed mass is unknown; the
		// result reports zero rather than a guess, with Verified=false.
		res.FinalMg = res.InitialMg
		m.log.Warnf("well %s dosed without verification", well)
		return m.finishDose(res, nil)
	}
	afterG, err := m.ReadBalance()
	if err != nil {
		return m.finishDose(res, err)
	}
	res.FinalMg = afterG * 1000
	res.ActualMg = res.FinalMg - res.InitialMg
	res.ErrorMg = res.ActualMg - targetMg
	m.log.Infof("well %s: dispensed %.3f mg (error %+.3f mg)", well, res.ActualMg, res.ErrorMg)
	return m.finishDose(res, nil)
}

// finishDose records the outcome in metrics, the event bus and the dose
// log, then returns the result with the original error.
func (m *MicroDoser) finishDose(res DoseResult, err error) (DoseResult, error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		m.setLastErr(err)
	} else if !res.Verified {
		outcome = "unverified"
	}
	dosesTotal.WithLabelValues(outcome).Inc()
	if err == nil && res.Verified {
		doseErrorMg.Observe(math.Abs(res.ErrorMg))
	}
	if res.Duration > 0 {
		dispenseSeconds.Observe(res.Duration.Seconds())
	}
	m.publish(events.DoseEvent{
		BatchID:  res.BatchID,
		Well:     res.Well,
		TargetMg: res.TargetMg,
		ActualMg: res.ActualMg,
		ErrorMg:  res.ErrorMg,
		Verified: res.Verified && err == nil,
		Err:      err,
		Time:     res.Timestamp,
	})
	if m.sink != nil {
		rec := metrics.DoseRecord{
			BatchID:  res.BatchID,
			Well:     res.Well,
			TargetMg: res.TargetMg,
			ActualMg: res.ActualMg,
			ErrorMg:  res.ErrorMg,
			Verified: res.Verified && err == nil,
			Duration: res.Duration,
			Failed:   err != nil,
			Time:     res.Timestamp,
		}
		if serr := m.sink.RecordDose([]metrics.DoseRecord{rec}); serr != nil {
			m.log.Errorf("dose metrics error: %v", serr)
		}
	}
	m.appendLog(res, err)
	return res, err
}

func (m *MicroDoser) appendLog(res DoseResult, err error) {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return
	}
	rec := doselog.Record{
		Timestamp: res.Timestamp,
		BatchID:   res.BatchID,
		Well:      res.Well,
		TargetMg:  res.TargetMg,
		InitialMg: res.InitialMg,
		FinalMg:   res.FinalMg,
		ActualMg:  res.ActualMg,
		ErrorMg:   res.ErrorMg,
		Verified:  res.Verified && err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if aerr := store.Append(context.Background(), rec); aerr != nil {
		m.log.Errorf("dose log append error: %v", aerr)
	}
}

// DosePlate doses the targets in order under a single busy hold. A
// hardware failure aborts the batch: the returned BatchResult carries the
// wells completed before the failure and the error names the triggering
// well. Context cancellation prevents further wells from starting but
// never interrupts a dispense in progress.
func (m *MicroDoser) DosePlate(ctx context.Context, targets []WellTarget, verify bool) (BatchResult, error) {
	batch := BatchResult{BatchID: uuid.NewString()}
	if m.doser == nil {
		return batch, ErrNoDoser
	}
	if err := m.acquire(); err != nil {
		return batch, err
	}
	defer m.release()
	m.log.Infof("dosing %d wells (batch %s)", len(targets), batch.BatchID)
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			batch.FailedWell = t.Well
			batch.Error = err.Error()
			return batch, err
		}
		res, err := m.doseLocked(batch.BatchID, t.Well, t.TargetMg, verify)
		if err != nil {
			batch.FailedWell = t.Well
			batch.Error = err.Error()
			return batch, fmt.Errorf("well %s: %w", t.Well, err)
		}
		batch.Results = append(batch.Results, res)
	}
	m.log.Infof("plate dosing complete: %d wells", len(batch.Results))
	return batch, nil
}

// AutoCalibrate runs the feed for the given duration over the balance and
// derives a new flow rate from the observed mass change. Requires a dosing
// capability whose model is reachable through Calibrator.
func (m *MicroDoser) AutoCalibrate(d time.Duration, cal Calibrator) (float64, error) {
	if m.doser == nil {
		return 0, ErrNoDoser
	}
	if err := m.acquire(); err != nil {
		return 0, err
	}
	defer m.release()
	beforeG, err := m.ReadBalance()
	if err != nil {
		return 0, err
	}
	if err := cal.DispenseFor(d); err != nil {
		m.setLastErr(err)
		return 0, err
	}
	afterG, err := m.ReadBalance()
	if err != nil {
		return 0, err
	}
	observedMg := (afterG - beforeG) * 1000
	rate, err := cal.Calibrate(observedMg, d)
	if err != nil {
		m.setLastErr(err)
		return 0, err
	}
	m.log.Infof("calibrated flow rate: %.3f mg/s", rate)
	m.publish(events.CalibrationEvent{RateMgPerS: rate, Points: 1, Time: time.Now()})
	if cr, ok := m.sink.(metrics.CalibrationRecorder); ok && m.sink != nil {
		if rerr := cr.RecordCalibration(metrics.CalibrationEvent{RateMgPerS: rate, Points: 1, Time: time.Now()}); rerr != nil {
			m.log.Errorf("calibration metrics error: %v", rerr)
		}
	}
	return rate, nil
}

// Calibrator is the two-step calibration surface: a timed dispense followed
// by a rate update from the observed mass.
type Calibrator interface {
	DispenseFor(d time.Duration) error
	Calibrate(observedMg float64, elapsed time.Duration) (float64, error)
}

// Home returns the dosing capability to its home position.
func (m *MicroDoser) Home() error {
	if m.doser == nil {
		return nil
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()
	return m.doser.Home()
}

// GetStatus returns a snapshot recomputed from live component state.
func (m *MicroDoser) GetStatus() SystemStatus {
	m.mu.Lock()
	st := SystemStatus{
		Initialized:   m.initialized,
		Busy:          m.busy,
		DoserAttached: m.doser != nil,
		LastError:     m.lastErr,
	}
	m.mu.Unlock()
	st.PlateLoaded = m.loader.State() == loader.Loaded
	if rr, ok := m.doser.(RateReporter); ok {
		st.FlowRateMgPerS = rr.Rate()
	}
	return st
}

// Shutdown is best-effort: it unloads a loaded plate and parks the dosing
// capability, logging rather than raising secondary errors so a shutdown
// call always completes. This is the one place errors are deliberately
// suppressed.
func (m *MicroDoser) Shutdown() {
	m.mu.Lock()
	for m.busy {
		// wait out the in-flight sequence; doses are not cancellable.
		m.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		m.mu.Lock()
	}
	m.busy = true
	m.mu.Unlock()
	m.log.Infof("shutting down station")
	if m.loader.State() == loader.Loaded {
		if err := m.unloadLocked(); err != nil {
			m.log.Errorf("shutdown unload: %v", err)
		}
	}
	if m.doser != nil {
		if err := m.doser.Shutdown(); err != nil {
			m.log.Errorf("shutdown doser: %v", err)
		}
	}
	m.mu.Lock()
	m.busy = false
	m.initialized = false
	m.mu.Unlock()
	m.log.Infof("station shutdown complete")
}

func (m *MicroDoser) publish(e eventbus.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

func (m *MicroDoser) recordPlate(action string) {
	if pr, ok := m.sink.(metrics.PlateRecorder); ok && m.sink != nil {
		ev := metrics.PlateEvent{Action: action, Plate: m.loader.Profile().Name, Time: time.Now()}
		if err := pr.RecordPlateEvent(ev); err != nil {
			m.log.Errorf("plate metrics error: %v", err)
		}
	}
}
