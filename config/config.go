// Package config defines the structures to configure a robot and read them from JSON.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/frc-reefscape/reefbot/commands"
	"github.com/frc-reefscape/reefbot/components/arm"
	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/components/climber"
	"github.com/frc-reefscape/reefbot/components/coral"
	"github.com/frc-reefscape/reefbot/components/limelight"
	"github.com/frc-reefscape/reefbot/components/motor"
	"github.com/frc-reefscape/reefbot/components/roller"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/resource"
	"github.com/frc-reefscape/reefbot/services/vision/hybrid"
)

// Defaults for the top level fields.
const (
	DefaultPeriod         = 20 * time.Millisecond
	DefaultDrive          = "drive"
	DefaultTelemetryTable = "SmartDashboard"
	DefaultAutonomous     = "none"

	// FakeModel is the model the default components are built with.
	FakeModel = resource.Model("fake")
)

// A Config describes the configuration of a robot.
type Config struct {
	// PeriodMs is the control tick period in milliseconds.
	PeriodMs int `json:"period_ms,omitempty"`

	Components []resource.Config `json:"components,omitempty"`

	// Drive names the base component the commands steer.
	Drive          string `json:"drive,omitempty"`
	TelemetryTable string `json:"telemetry_table,omitempty"`
	Autonomous     string `json:"autonomous,omitempty"`

	Vision       Vision                      `json:"vision"`
	Tracking     commands.TrackConfig        `json:"tracking"`
	Arm          arm.Config                  `json:"arm"`
	Roller       roller.Config               `json:"roller"`
	Climber      climber.Config              `json:"climber"`
	Pickup       commands.PickupConfig       `json:"pickup"`
	Intake       commands.IntakeConfig       `json:"intake"`
	DriveToPiece commands.DriveToPieceConfig `json:"drive_to_piece"`

	// Log sets sublogger levels by name pattern, e.g. {"pattern": "*.vision.*", "level": "debug"}.
	Log []logging.LoggerPatternConfig `json:"log,omitempty"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`
}

// Vision configures both vision sources and how they are fused.
type Vision struct {
	Primary     limelight.Config `json:"primary"`
	Secondary   coral.Config     `json:"secondary"`
	Mode        hybrid.Mode      `json:"mode"`
	TargetLabel string           `json:"target_label,omitempty"`
}

// Period returns the control tick period.
func (c *Config) Period() time.Duration {
	if c.PeriodMs <= 0 {
		return DefaultPeriod
	}
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// Defaults returns a copy of the config with every unset field filled in. A config without
// components gets simulated motors for every subsystem and a fake drive base.
func (c Config) Defaults() *Config {
	if c.PeriodMs == 0 {
		c.PeriodMs = int(DefaultPeriod / time.Millisecond)
	}
	if c.Drive == "" {
		c.Drive = DefaultDrive
	}
	if c.TelemetryTable == "" {
		c.TelemetryTable = DefaultTelemetryTable
	}
	if c.Autonomous == "" {
		c.Autonomous = DefaultAutonomous
	}
	c.Vision.Primary = c.Vision.Primary.WithDefaults()
	c.Vision.Secondary = c.Vision.Secondary.WithDefaults()
	if c.Vision.TargetLabel == "" {
		c.Vision.TargetLabel = hybrid.DefaultTargetLabel
	}
	c.Tracking = c.Tracking.WithDefaults()
	c.Arm = c.Arm.WithDefaults()
	c.Roller = c.Roller.WithDefaults()
	c.Climber = c.Climber.WithDefaults()
	c.Pickup = c.Pickup.WithDefaults()
	c.Intake = c.Intake.WithDefaults()
	c.DriveToPiece = c.DriveToPiece.WithDefaults()

	if len(c.Components) == 0 {
		c.Components = []resource.Config{
			{Name: c.Drive, API: base.API, Model: FakeModel},
			{Name: c.Arm.Motor, API: motor.API, Model: FakeModel},
			{Name: c.Roller.Motor, API: motor.API, Model: FakeModel},
			{Name: c.Climber.Motor, API: motor.API, Model: FakeModel},
		}
	} else {
		c.Components = append([]resource.Config(nil), c.Components...)
	}
	return &c
}

// Validate ensures all parts of the config are valid. Component configs have their attributes
// converted and their implicit dependencies filled in.
func (c *Config) Validate() error {
	if c.PeriodMs < 0 {
		return goutils.NewConfigValidationError("period_ms", errors.New("must not be negative"))
	}

	names := map[resource.Name]struct{}{}
	for idx := range c.Components {
		comp := &c.Components[idx]
		deps, err := comp.Validate(fmt.Sprintf("%s.%d", "components", idx))
		if err != nil {
			return err
		}
		comp.ImplicitDependsOn = deps
		if _, dup := names[comp.ResourceName()]; dup {
			return goutils.NewConfigValidationError(
				fmt.Sprintf("%s.%d", "components", idx),
				errors.Errorf("duplicate resource %s", comp.ResourceName()))
		}
		names[comp.ResourceName()] = struct{}{}
	}

	requireComponent := func(path string, name resource.Name) error {
		if _, ok := names[name]; !ok {
			return goutils.NewConfigValidationError(path, errors.Errorf("no component %s configured", name))
		}
		return nil
	}
	if err := requireComponent("drive", base.Named(c.Drive)); err != nil {
		return err
	}

	for _, sub := range []struct {
		path string
		cfg  resource.ConfigValidator
	}{
		{"arm", &c.Arm},
		{"roller", &c.Roller},
		{"climber", &c.Climber},
	} {
		motors, err := sub.cfg.Validate(sub.path)
		if err != nil {
			return err
		}
		for _, name := range motors {
			if err := requireComponent(sub.path+".motor", motor.Named(name)); err != nil {
				return err
			}
		}
	}

	if err := c.Vision.Validate("vision"); err != nil {
		return err
	}
	if err := c.Tracking.Validate("tracking"); err != nil {
		return err
	}
	if err := validatePickup("pickup", c.Pickup); err != nil {
		return err
	}
	if err := c.Intake.Validate("intake"); err != nil {
		return err
	}
	if err := c.DriveToPiece.Validate("drive_to_piece"); err != nil {
		return err
	}
	for i, lpc := range c.Log {
		if err := lpc.Validate(fmt.Sprintf("log.%d", i)); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks both sources.
func (v *Vision) Validate(path string) error {
	if err := v.Primary.Validate(path + ".primary"); err != nil {
		return err
	}
	if err := v.Secondary.Validate(path + ".secondary"); err != nil {
		return err
	}
	if v.Mode.String() == "unknown" {
		return goutils.NewConfigValidationError(path+".mode", errors.Errorf("unknown vision mode %d", v.Mode))
	}
	return nil
}

func validatePickup(path string, cfg commands.PickupConfig) error {
	for field, d := range map[string]time.Duration{
		"arm_timeout":    cfg.ArmTimeout,
		"track_timeout":  cfg.TrackTimeout,
		"intake_timeout": cfg.IntakeTimeout,
		"stow_timeout":   cfg.StowTimeout,
	} {
		if d < 0 {
			return goutils.NewConfigValidationError(path+"."+field, errors.New("must not be negative"))
		}
	}
	return nil
}
