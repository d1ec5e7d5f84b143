// Package doselog persists per-well dose outcomes as an append-only
// operation log with query support.
package doselog

import (
	"context"
	"time"
)

// Record captures one dose attempt and its gravimetric outcome.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batch_id"`
	Well      string    `json:"well"`
	TargetMg  float64   `json:"target_mg"`
	InitialMg float64   `json:"initial_mg"`
	FinalMg   float64   `json:"final_mg"`
	ActualMg  float64   `json:"actual_mg"`
	ErrorMg   float64   `json:"error_mg"`
	Verified  bool      `json:"verified"`
	Error     string    `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start   time.Time
	End     time.Time
	Well    string
	BatchID string
}

// Matches reports whether the record passes all filters.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Well != "" && r.Well != q.Well {
		return false
	}
	if q.BatchID != "" && r.BatchID != q.BatchID {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
