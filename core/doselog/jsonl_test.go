package doselog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords(base time.Time) []Record {
	return []Record{
		{Timestamp: base, BatchID: "b1", Well: "A1", TargetMg: 5, ActualMg: 5.2, ErrorMg: 0.2, Verified: true},
		{Timestamp: base.Add(time.Minute), BatchID: "b1", Well: "A2", TargetMg: 3, Verified: false},
		{Timestamp: base.Add(2 * time.Minute), BatchID: "b2", Well: "A1", TargetMg: 7, Error: "feed stalled"},
	}
}

func TestJSONLAppendQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doses.jsonl")
	s, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, r := range sampleRecords(base) {
		if err := s.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	all, err := s.Query(context.Background(), Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records got %d", len(all))
	}
	byWell, err := s.Query(context.Background(), Query{Well: "A1"})
	if err != nil {
		t.Fatalf("query well: %v", err)
	}
	if len(byWell) != 2 {
		t.Fatalf("expected 2 A1 records got %d", len(byWell))
	}
	byBatch, err := s.Query(context.Background(), Query{BatchID: "b2"})
	if err != nil {
		t.Fatalf("query batch: %v", err)
	}
	if len(byBatch) != 1 || byBatch[0].Error != "feed stalled" {
		t.Fatalf("bad batch result %+v", byBatch)
	}
	windowed, err := s.Query(context.Background(), Query{Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("query window: %v", err)
	}
	if len(windowed) != 1 || windowed[0].Well != "A2" {
		t.Fatalf("bad window result %+v", windowed)
	}
}

func TestRotatingJSONLAppendQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doses.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = s.Close() }()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, r := range sampleRecords(base) {
		if err := s.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	res, err := s.Query(context.Background(), Query{Well: "A2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 1 || res[0].BatchID != "b1" {
		t.Fatalf("bad result %+v", res)
	}
}
