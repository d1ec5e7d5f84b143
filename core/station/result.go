package station

import "time"

// DoseResult is the per-well record of one dose attempt. It is created once
// per dose and never mutated afterwards.
type DoseResult struct {
	BatchID   string        `json:"batch_id,omitempty"`
	Well      string        `json:"well"`
	TargetMg  float64       `json:"target_mg"`
	InitialMg float64       `json:"initial_mg"`
	FinalMg   float64       `json:"final_mg"`
	ActualMg  float64       `json:"actual_mg"`
	ErrorMg   float64       `json:"error_mg"`
	Verified  bool          `json:"verified"`
	Duration  time.Duration `json:"dispense_duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// WellTarget is one entry of an ordered dosing plan.
type WellTarget struct {
	Well     string  `json:"well" yaml:"well"`
	TargetMg float64 `json:"target_mg" yaml:"target_mg"`
}

// BatchResult aggregates the results of a plate dosing run. When a well
// fails, Results holds the wells completed before the failure and
// FailedWell names the trigger; wells already dosed are never rolled back.
type BatchResult struct {
	BatchID    string       `json:"batch_id"`
	Results    []DoseResult `json:"results"`
	FailedWell string       `json:"failed_well,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// SystemStatus is a transient snapshot of the station, recomputed on
// demand.
type SystemStatus struct {
	Initialized    bool    `json:"initialized"`
	PlateLoaded    bool    `json:"plate_loaded"`
	Busy           bool    `json:"busy"`
	DoserAttached  bool    `json:"doser_attached"`
	FlowRateMgPerS float64 `json:"flow_rate_mg_per_s,omitempty"`
	LastError      string  `json:"last_error,omitempty"`
}
