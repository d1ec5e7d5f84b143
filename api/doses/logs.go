// Package doses exposes the dose operation log over HTTP.
package doses

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labkit/microdoser/core/doselog"
)

// NewLogHandler returns an HTTP handler exposing dose records via
// GET /api/doses. Start and end accept RFC3339 timestamps.
func NewLogHandler(store doselog.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := doselog.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.Well = r.URL.Query().Get("well")
		q.BatchID = r.URL.Query().Get("batch_id")
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
