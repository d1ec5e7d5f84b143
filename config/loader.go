package config

import (
	"fmt"
	"time"

	"github.com/labkit/microdoser/core/loader"
)

// ProfileConfig is the collision envelope for one plate type.
type ProfileConfig struct {
	PlateSafeAngle float64 `json:"plate_safe_angle"`
	LidSafeAngle   float64 `json:"lid_safe_angle"`
}

// LoaderConfig defines servo channels, travel angles and per-plate-type
// collision profiles for the plate loader.
type LoaderConfig struct {
	LiftChannels   [2]int                   `json:"lift_channels"`
	LidChannel     int                      `json:"lid_channel"`
	LiftUpAngle    float64                  `json:"lift_up_angle"`
	LiftDownAngle  float64                  `json:"lift_down_angle"`
	LidOpenAngle   float64                  `json:"lid_open_angle"`
	LidClosedAngle float64                  `json:"lid_closed_angle"`
	StepDegrees    float64                  `json:"step_degrees"`
	StepDelayMS    int                      `json:"step_delay_ms"`
	PlateType      string                   `json:"plate_type"`
	Profiles       map[string]ProfileConfig `json:"profiles"`
}

// SetDefaults applies sane defaults for a shallow 96-well plate rig.
func (c *LoaderConfig) SetDefaults() {
	if c.StepDegrees == 0 {
		c.StepDegrees = 2
	}
	if c.StepDelayMS == 0 {
		c.StepDelayMS = 15
	}
	if c.PlateType == "" {
		c.PlateType = "shallow_plate"
	}
	if c.Profiles == nil {
		c.Profiles = map[string]ProfileConfig{
			"shallow_plate": {PlateSafeAngle: 5, LidSafeAngle: 40},
			"deep_well":     {PlateSafeAngle: 10, LidSafeAngle: 55},
		}
	}
}

// Validate checks the selected plate type has a collision profile.
func (c LoaderConfig) Validate() error {
	if _, ok := c.Profiles[c.PlateType]; !ok {
		return fmt.Errorf("unknown plate type %q", c.PlateType)
	}
	if c.LiftChannels[0] == c.LiftChannels[1] {
		return fmt.Errorf("lift channels must differ, both %d", c.LiftChannels[0])
	}
	for _, ch := range c.LiftChannels {
		if ch == c.LidChannel {
			return fmt.Errorf("lid channel %d collides with a lift channel", c.LidChannel)
		}
	}
	return nil
}

// Params converts the section into loader params.
func (c LoaderConfig) Params() loader.Params {
	return loader.Params{
		LiftChannels:   c.LiftChannels,
		LidChannel:     c.LidChannel,
		LiftUpAngle:    c.LiftUpAngle,
		LiftDownAngle:  c.LiftDownAngle,
		LidOpenAngle:   c.LidOpenAngle,
		LidClosedAngle: c.LidClosedAngle,
		StepDegrees:    c.StepDegrees,
		StepDelay:      time.Duration(c.StepDelayMS) * time.Millisecond,
	}
}

// Profile returns the collision profile for the configured plate type.
func (c LoaderConfig) Profile() loader.Profile {
	p := c.Profiles[c.PlateType]
	return loader.Profile{
		Name:           c.PlateType,
		PlateSafeAngle: p.PlateSafeAngle,
		LidSafeAngle:   p.LidSafeAngle,
	}
}
