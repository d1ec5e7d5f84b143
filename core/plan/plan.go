// Package plan loads dosing plans: an ordered list of wells and target
// masses executed as one batch.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/labkit/microdoser/core/geometry"
	"github.com/labkit/microdoser/core/station"
)

// Plan is an ordered dosing plan. Order is preserved through execution.
type Plan struct {
	Name    string               `yaml:"name" json:"name"`
	Verify  *bool                `yaml:"verify,omitempty" json:"verify,omitempty"`
	Targets []station.WellTarget `yaml:"targets" json:"targets"`
}

// VerifyOrDefault resolves the optional verify flag against the workflow
// default.
func (p Plan) VerifyOrDefault(def bool) bool {
	if p.Verify == nil {
		return def
	}
	return *p.Verify
}

// Load reads a plan from a YAML file and validates it.
func Load(path string) (*Plan, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported plan format: %s", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every entry for a well-formed label and positive target.
// Well range against the configured plate is checked later by the doser.
func (p Plan) Validate() error {
	if len(p.Targets) == 0 {
		return fmt.Errorf("plan has no targets")
	}
	seen := make(map[string]bool, len(p.Targets))
	for i, t := range p.Targets {
		if _, _, err := geometry.ParseWell(t.Well); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
		if t.TargetMg <= 0 {
			return fmt.Errorf("target %d (%s): mass must be positive, got %.3f", i, t.Well, t.TargetMg)
		}
		if seen[t.Well] {
			return fmt.Errorf("target %d: well %s listed twice", i, t.Well)
		}
		seen[t.Well] = true
	}
	return nil
}
