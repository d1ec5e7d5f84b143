package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/labkit/microdoser/core/metrics"
	"github.com/labkit/microdoser/infra/mqtt"
)

type Config struct {
	Plate    PlateConfig    `json:"plate"`
	Machine  MachineConfig  `json:"machine"`
	Loader   LoaderConfig   `json:"loader"`
	Workflow WorkflowConfig `json:"workflow"`
	Balance  BalanceConfig  `json:"balance"`
	CNC      CNCConfig      `json:"cnc"`
	Servo    ServoConfig    `json:"servo"`
	Gate     GateConfig     `json:"gate"`
	Metrics  metrics.Config `json:"metrics"`
	MQTT     mqtt.Config    `json:"mqtt"`
	DoseLog  DoseLogConfig  `json:"dose_log"`
	API      APIConfig      `json:"api"`
	Simulate bool           `json:"simulate"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("MD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "md_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Plate.SetDefaults()
	cfg.Loader.SetDefaults()
	cfg.Workflow.SetDefaults()
	cfg.Gate.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.DoseLog.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Plate.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Machine.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Loader.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.DoseLog.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
