// Package climber drives the end-game climber winch.
package climber

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/components/motor"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/utils"
)

// Default climber speeds.
const (
	DefaultSpeedUp   = 0.5
	DefaultSpeedDown = -0.5
)

// Config holds the climber's tunables.
type Config struct {
	Motor     string  `json:"motor"`
	SpeedUp   float64 `json:"speed_up,omitempty"`
	SpeedDown float64 `json:"speed_down,omitempty"`
}

// WithDefaults returns a copy with every zero field set to its default.
func (cfg Config) WithDefaults() Config {
	if cfg.Motor == "" {
		cfg.Motor = "climber"
	}
	if cfg.SpeedUp == 0 {
		cfg.SpeedUp = DefaultSpeedUp
	}
	if cfg.SpeedDown == 0 {
		cfg.SpeedDown = DefaultSpeedDown
	}
	return cfg
}

// Validate ensures all parts of the config are valid and returns the motor as a dependency.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.Motor == "" {
		return nil, errors.Errorf("%s.motor is required", path)
	}
	if math.Abs(cfg.SpeedUp) > 1 {
		return nil, utils.NewOutOfRangeError(path+".speed_up", cfg.SpeedUp, -1, 1)
	}
	if math.Abs(cfg.SpeedDown) > 1 {
		return nil, utils.NewOutOfRangeError(path+".speed_down", cfg.SpeedDown, -1, 1)
	}
	return []string{cfg.Motor}, nil
}

// Climber is the climber subsystem.
type Climber struct {
	motor  motor.Motor
	logger logging.Logger

	mu  sync.RWMutex
	cfg Config
}

// New returns a climber driven by m.
func New(m motor.Motor, cfg Config, logger logging.Logger) *Climber {
	return &Climber{motor: m, cfg: cfg.WithDefaults(), logger: logger}
}

// Config returns the active tunables.
func (c *Climber) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Reconfigure swaps the tunables.
func (c *Climber) Reconfigure(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg.WithDefaults()
}

// Run drives the climber at speed in [-1, 1], positive up.
func (c *Climber) Run(ctx context.Context, speed float64) error {
	return c.motor.SetPower(ctx, utils.Clamp(speed, -1, 1))
}

// Stop sets the climber output to zero.
func (c *Climber) Stop(ctx context.Context) error {
	return c.motor.Stop(ctx)
}
