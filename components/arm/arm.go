// Package arm drives the intake arm through a single motor with an absolute encoder.
package arm

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/components/motor"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/telemetry"
	"github.com/frc-reefscape/reefbot/utils"
)

// Defaults for the arm, positions in motor rotations.
const (
	DefaultKp                  = 0.1
	DefaultMaxSpeed            = 0.3
	DefaultTolerance           = 0.5
	DefaultIntakePosition      = 5.0
	DefaultSafePosition        = 0.0
	DefaultStowPosition        = 0.0
	DefaultAlgaeIntakePosition = 5.0
	DefaultSpeedUp             = 0.2
	DefaultSpeedDown           = -0.2
	DefaultHoldUp              = 0.05
	DefaultHoldDown            = -0.05
)

// Config holds the arm's tunables.
type Config struct {
	Motor               string  `json:"motor"`
	Kp                  float64 `json:"kp,omitempty"`
	MaxSpeed            float64 `json:"max_speed,omitempty"`
	Tolerance           float64 `json:"tolerance,omitempty"`
	IntakePosition      float64 `json:"intake_position,omitempty"`
	SafePosition        float64 `json:"safe_position,omitempty"`
	StowPosition        float64 `json:"stow_position,omitempty"`
	AlgaeIntakePosition float64 `json:"algae_intake_position,omitempty"`
	SpeedUp             float64 `json:"speed_up,omitempty"`
	SpeedDown           float64 `json:"speed_down,omitempty"`
	HoldUp              float64 `json:"hold_up,omitempty"`
	HoldDown            float64 `json:"hold_down,omitempty"`
}

// WithDefaults returns a copy with zero gains, speeds and tolerances replaced. Positions of zero
// are meaningful and only the non-zero position defaults are applied.
func (cfg Config) WithDefaults() Config {
	if cfg.Motor == "" {
		cfg.Motor = "arm"
	}
	if cfg.Kp == 0 {
		cfg.Kp = DefaultKp
	}
	if cfg.MaxSpeed == 0 {
		cfg.MaxSpeed = DefaultMaxSpeed
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.IntakePosition == 0 {
		cfg.IntakePosition = DefaultIntakePosition
	}
	if cfg.AlgaeIntakePosition == 0 {
		cfg.AlgaeIntakePosition = DefaultAlgaeIntakePosition
	}
	if cfg.SpeedUp == 0 {
		cfg.SpeedUp = DefaultSpeedUp
	}
	if cfg.SpeedDown == 0 {
		cfg.SpeedDown = DefaultSpeedDown
	}
	if cfg.HoldUp == 0 {
		cfg.HoldUp = DefaultHoldUp
	}
	if cfg.HoldDown == 0 {
		cfg.HoldDown = DefaultHoldDown
	}
	return cfg
}

// Validate ensures all parts of the config are valid and returns the motor as a dependency.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.Motor == "" {
		return nil, errors.Errorf("%s.motor is required", path)
	}
	if cfg.Kp < 0 {
		return nil, utils.NewOutOfRangeError(path+".kp", cfg.Kp, 0, math.Inf(1))
	}
	for field, v := range map[string]float64{
		".max_speed":  cfg.MaxSpeed,
		".speed_up":   cfg.SpeedUp,
		".speed_down": cfg.SpeedDown,
		".hold_up":    cfg.HoldUp,
		".hold_down":  cfg.HoldDown,
	} {
		if math.Abs(v) > 1 {
			return nil, utils.NewOutOfRangeError(path+field, v, -1, 1)
		}
	}
	if cfg.Tolerance < 0 {
		return nil, utils.NewOutOfRangeError(path+".tolerance", cfg.Tolerance, 0, math.Inf(1))
	}
	return []string{cfg.Motor}, nil
}

// Arm is the intake arm subsystem.
type Arm struct {
	motor  motor.Motor
	sink   telemetry.Sink
	logger logging.Logger

	mu  sync.RWMutex
	cfg Config
}

// New returns an arm driven by m.
func New(m motor.Motor, cfg Config, sink telemetry.Sink, logger logging.Logger) *Arm {
	if sink == nil {
		sink = telemetry.Noop
	}
	return &Arm{
		motor:  m,
		cfg:    cfg.WithDefaults(),
		sink:   telemetry.Prefixed(sink, "Arm"),
		logger: logger,
	}
}

// Config returns the active tunables.
func (a *Arm) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Reconfigure swaps the tunables. The motor is not changed.
func (a *Arm) Reconfigure(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg.WithDefaults()
}

// RunArm drives the arm open loop at speed in [-1, 1], positive up.
func (a *Arm) RunArm(ctx context.Context, speed float64) error {
	return a.motor.SetPower(ctx, utils.Clamp(speed, -1, 1))
}

// Position returns the arm position in rotations.
func (a *Arm) Position(ctx context.Context) (float64, error) {
	return a.motor.Position(ctx)
}

// IsAtPosition reports whether the arm is strictly within tolerance of target.
func (a *Arm) IsAtPosition(ctx context.Context, target, tolerance float64) (bool, error) {
	pos, err := a.Position(ctx)
	if err != nil {
		return false, err
	}
	return math.Abs(pos-target) < tolerance, nil
}

// DriveToward applies one proportional step toward target and returns the commanded speed.
func (a *Arm) DriveToward(ctx context.Context, target float64) (float64, error) {
	pos, err := a.Position(ctx)
	if err != nil {
		return 0, err
	}
	cfg := a.Config()
	speed := utils.ClampMagnitude((target-pos)*cfg.Kp, cfg.MaxSpeed)
	return speed, a.RunArm(ctx, speed)
}

// Stop sets the arm output to zero.
func (a *Arm) Stop(ctx context.Context) error {
	return a.motor.Stop(ctx)
}

// ResetEncoder makes the current position zero.
func (a *Arm) ResetEncoder(ctx context.Context) error {
	a.logger.Info("resetting arm encoder")
	return a.motor.ResetZeroPosition(ctx, 0)
}

// Periodic publishes the position and whether the arm is at its named positions.
func (a *Arm) Periodic(ctx context.Context) {
	pos, err := a.Position(ctx)
	if err != nil {
		a.logger.Debugw("cannot read arm position", "error", err)
		return
	}
	cfg := a.Config()
	a.sink.Publish("Position", pos)
	a.sink.Publish("At Intake Position", math.Abs(pos-cfg.IntakePosition) < cfg.Tolerance)
	a.sink.Publish("At Safe Position", math.Abs(pos-cfg.SafePosition) < cfg.Tolerance)
}
