package station

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	corestation "github.com/labkit/microdoser/core/station"
)

type fakeController struct {
	status   corestation.SystemStatus
	loadErr  error
	doseErr  error
	doses    []string
	weighed  []string
	unloaded int
}

func (f *fakeController) GetStatus() corestation.SystemStatus { return f.status }
func (f *fakeController) LoadPlate() error                    { return f.loadErr }
func (f *fakeController) UnloadPlate() error                  { f.unloaded++; return nil }
func (f *fakeController) DoseToWell(well string, targetMg float64, verify bool) (corestation.DoseResult, error) {
	f.doses = append(f.doses, well)
	if f.doseErr != nil {
		return corestation.DoseResult{}, f.doseErr
	}
	return corestation.DoseResult{Well: well, TargetMg: targetMg, ActualMg: targetMg, Verified: verify}, nil
}
func (f *fakeController) WeighWell(well string) (float64, error) {
	f.weighed = append(f.weighed, well)
	return 0.0123, nil
}

func TestStatusHandler(t *testing.T) {
	ctl := &fakeController{status: corestation.SystemStatus{Initialized: true, PlateLoaded: true, FlowRateMgPerS: 2}}
	srv := httptest.NewServer(NewStatusHandler(ctl))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var st corestation.SystemStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.PlateLoaded || st.FlowRateMgPerS != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestDoseHandler(t *testing.T) {
	ctl := &fakeController{}
	srv := httptest.NewServer(NewDoseHandler(ctl))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`{"well":"B3","target_mg":5}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var res corestation.DoseResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Well != "B3" || !res.Verified {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(ctl.doses) != 1 || ctl.doses[0] != "B3" {
		t.Fatalf("controller doses: %v", ctl.doses)
	}
}

func TestDoseHandlerRejectsBadBody(t *testing.T) {
	srv := httptest.NewServer(NewDoseHandler(&fakeController{}))
	defer srv.Close()

	cases := []string{`{`, `{"well":"","target_mg":5}`, `{"well":"A1","target_mg":0}`}
	for _, body := range cases {
		resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestDoseHandlerBusyConflict(t *testing.T) {
	ctl := &fakeController{doseErr: corestation.ErrBusy}
	srv := httptest.NewServer(NewDoseHandler(ctl))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`{"well":"A1","target_mg":5}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409", resp.StatusCode)
	}
}

func TestPlateHandlerMethods(t *testing.T) {
	ctl := &fakeController{}
	srv := httptest.NewServer(NewPlateHandler(ctl, "unload"))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d, want 405", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL, "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || ctl.unloaded != 1 {
		t.Fatalf("POST status %d, unloaded %d", resp.StatusCode, ctl.unloaded)
	}
}

func TestWeighHandler(t *testing.T) {
	ctl := &fakeController{}
	srv := httptest.NewServer(NewWeighHandler(ctl))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?well=C4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["well"] != "C4" || body["mass_g"].(float64) != 0.0123 {
		t.Fatalf("unexpected body: %v", body)
	}
}
