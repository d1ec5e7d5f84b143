package app

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/labkit/microdoser/config"
	"github.com/labkit/microdoser/core/doselog"
	"github.com/labkit/microdoser/core/station"
)

func simulatedConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Plate:   config.PlateConfig{OriginX: 50, OriginY: 60, SpacingMM: 9, Rows: 8, Cols: 12},
		Machine: config.MachineConfig{XHigh: 300, YHigh: 200, ZHigh: 50},
		Loader: config.LoaderConfig{
			LiftChannels: [2]int{0, 1},
			LidChannel:   2,
			LiftUpAngle:  90,
			LidOpenAngle: 100,
			StepDegrees:  10,
			StepDelayMS:  1,
		},
		Workflow: config.WorkflowConfig{
			AutoTareOnLoad:      true,
			VerifyMassAfterDose: true,
			InitialFlowRateMgS:  2.0,
		},
		DoseLog:  config.DoseLogConfig{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "doses.jsonl")},
		Simulate: true,
	}
	cfg.Loader.SetDefaults()
	return cfg
}

func TestSimulatedDoseEndToEnd(t *testing.T) {
	svc, err := New(simulatedConfig(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	if err := svc.Station.LoadPlate(); err != nil {
		t.Fatalf("load plate: %v", err)
	}
	res, err := svc.Station.DoseToWell("A1", 5.0, true)
	if err != nil {
		t.Fatalf("dose: %v", err)
	}
	if math.Abs(res.ActualMg-5.0) > 1e-6 {
		t.Fatalf("actual = %v mg, want 5.0", res.ActualMg)
	}
	if !res.Verified {
		t.Fatalf("result not verified")
	}

	recs, err := svc.Store.Query(context.Background(), doselog.Query{Well: "A1"})
	if err != nil {
		t.Fatalf("query log: %v", err)
	}
	if len(recs) != 1 || !recs[0].Verified {
		t.Fatalf("log records: %+v", recs)
	}

	if err := svc.Station.UnloadPlate(); err != nil {
		t.Fatalf("unload: %v", err)
	}
}

func TestSimulatedBatch(t *testing.T) {
	svc, err := New(simulatedConfig(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close()

	if err := svc.Station.LoadPlate(); err != nil {
		t.Fatalf("load plate: %v", err)
	}
	targets := []station.WellTarget{
		{Well: "A1", TargetMg: 5},
		{Well: "B2", TargetMg: 2.5},
		{Well: "H12", TargetMg: 1},
	}
	batch, err := svc.Station.DosePlate(context.Background(), targets, true)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(batch.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(batch.Results))
	}
	for i, r := range batch.Results {
		if math.Abs(r.ActualMg-targets[i].TargetMg) > 1e-6 {
			t.Errorf("well %s: actual %v, want %v", r.Well, r.ActualMg, targets[i].TargetMg)
		}
	}
}
