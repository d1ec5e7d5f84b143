// Package station exposes the station workflow over a small REST surface.
package station

import (
	"encoding/json"
	"errors"
	"net/http"

	corestation "github.com/labkit/microdoser/core/station"
)

// Controller is the subset of the station orchestrator the handlers drive.
type Controller interface {
	GetStatus() corestation.SystemStatus
	LoadPlate() error
	UnloadPlate() error
	DoseToWell(well string, targetMg float64, verify bool) (corestation.DoseResult, error)
	WeighWell(well string) (float64, error)
}

// NewStatusHandler returns an HTTP handler exposing the station snapshot
// via GET /api/status.
func NewStatusHandler(ctl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, ctl.GetStatus())
	})
}

// NewPlateHandler handles POST /api/plate/load and POST /api/plate/unload.
func NewPlateHandler(ctl Controller, action string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var err error
		switch action {
		case "load":
			err = ctl.LoadPlate()
		case "unload":
			err = ctl.UnloadPlate()
		default:
			http.Error(w, "unknown action", http.StatusNotFound)
			return
		}
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})
}

type doseRequest struct {
	Well     string  `json:"well"`
	TargetMg float64 `json:"target_mg"`
	Verify   *bool   `json:"verify,omitempty"`
}

// NewDoseHandler handles POST /api/dose with a JSON body naming the well
// and target mass. Verification defaults to on.
func NewDoseHandler(ctl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req doseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Well == "" || req.TargetMg <= 0 {
			http.Error(w, "well and positive target_mg are required", http.StatusBadRequest)
			return
		}
		verify := true
		if req.Verify != nil {
			verify = *req.Verify
		}
		res, err := ctl.DoseToWell(req.Well, req.TargetMg, verify)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, res)
	})
}

// NewWeighHandler handles GET /api/weigh?well=A1.
func NewWeighHandler(ctl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		well := r.URL.Query().Get("well")
		if well == "" {
			http.Error(w, "well query parameter is required", http.StatusBadRequest)
			return
		}
		grams, err := ctl.WeighWell(well)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, map[string]any{"well": well, "mass_g": grams})
	})
}

func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, corestation.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, corestation.ErrNotLoaded), errors.Is(err, corestation.ErrNoDoser):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
