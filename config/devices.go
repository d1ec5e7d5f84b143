package config

import "fmt"

// BalanceConfig defines the serial connection to the precision balance.
type BalanceConfig struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// CNCConfig defines the serial connection to the motion controller.
type CNCConfig struct {
	Port       string  `json:"port"`
	Baud       int     `json:"baud"`
	FeedRateMM float64 `json:"feed_rate_mm"`
}

// ServoConfig defines the serial connection to the servo controller board
// that drives the plate loader and the dispense gate.
type ServoConfig struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// GateConfig defines the dispense gate servo channel, its travel angles
// and the feed motor relay connection.
type GateConfig struct {
	Channel       int     `json:"channel"`
	OpenAngle     float64 `json:"open_angle"`
	ClosedAngle   float64 `json:"closed_angle"`
	FeedMotorPort string  `json:"feed_motor_port"`
	FeedMotorBaud int     `json:"feed_motor_baud"`
}

// SetDefaults applies sane defaults.
func (c *GateConfig) SetDefaults() {
	if c.OpenAngle == 0 && c.ClosedAngle == 0 {
		c.OpenAngle = 80
	}
}

// DoseLogConfig defines settings for dose log storage and rotation.
type DoseLogConfig struct {
	// Backend selects the log store type: "jsonl" or "rotating".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *DoseLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "doses.jsonl"
	}
}

// Validate checks mandatory fields.
func (c DoseLogConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "rotating" {
		return fmt.Errorf("unknown dose log backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("dose log path is required")
	}
	return nil
}

// APIConfig defines the REST facade listener.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
