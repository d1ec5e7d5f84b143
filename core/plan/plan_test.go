package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/labkit/microdoser/core/station"
)

func TestLoad(t *testing.T) {
	data := `name: test run
verify: true
targets:
  - well: A1
    target_mg: 5.0
  - well: A2
    target_mg: 3.0
`
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Targets) != 2 || p.Targets[0].Well != "A1" || p.Targets[1].TargetMg != 3.0 {
		t.Fatalf("bad plan %+v", p)
	}
	if !p.VerifyOrDefault(false) {
		t.Fatalf("verify flag lost")
	}
}

func TestLoadRejectsExtension(t *testing.T) {
	if _, err := Load("plan.toml"); err == nil {
		t.Fatalf("expected error for wrong ext")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		targets []station.WellTarget
	}{
		{"empty", nil},
		{"bad well", []station.WellTarget{{Well: "9A", TargetMg: 1}}},
		{"zero mass", []station.WellTarget{{Well: "A1", TargetMg: 0}}},
		{"duplicate", []station.WellTarget{{Well: "A1", TargetMg: 1}, {Well: "A1", TargetMg: 2}}},
	}
	for _, c := range cases {
		if err := (Plan{Targets: c.targets}).Validate(); err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
	ok := Plan{Targets: []station.WellTarget{{Well: "A1", TargetMg: 1}, {Well: "H12", TargetMg: 2}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}
}
