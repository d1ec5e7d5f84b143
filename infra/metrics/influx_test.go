package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	coremetrics "github.com/labkit/microdoser/core/metrics"
)

func TestInfluxSink_RecordDose(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	rec := coremetrics.DoseRecord{
		BatchID:  "batch-1",
		Well:     "A1",
		TargetMg: 5,
		ActualMg: 5.2,
		ErrorMg:  0.2,
		Verified: true,
		Duration: 2500 * time.Millisecond,
		Time:     time.Now(),
	}
	if err := sink.RecordDose([]coremetrics.DoseRecord{rec}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.Contains(body, "dose_event") {
		t.Fatalf("measurement missing: %q", body)
	}
	if !strings.Contains(body, "well=A1") || !strings.Contains(body, "verified=true") {
		t.Fatalf("tags missing: %q", body)
	}
	if !strings.Contains(body, "actual_mg=5.2") {
		t.Fatalf("fields missing: %q", body)
	}
}

func TestInfluxSink_RecordPlateEvent(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	ev := coremetrics.PlateEvent{Action: "load", Plate: "shallow_plate", Time: time.Now()}
	if err := sink.RecordPlateEvent(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.Contains(body, "plate_event") || !strings.Contains(body, "action=load") {
		t.Fatalf("unexpected line protocol: %q", body)
	}
}

func TestInfluxSinkWithFallback_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL, "token", "org", "bucket")
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink fallback, got %T", sink)
	}
}
