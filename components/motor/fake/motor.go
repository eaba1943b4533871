// Package fake implements a simulated motor for tests and for running the robot without hardware.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/frc-reefscape/reefbot/components/motor"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/resource"
	"github.com/frc-reefscape/reefbot/utils"
)

// Model is the model name of the simulated motor.
const Model = resource.Model("fake")

const (
	defaultMaxRPM      = 5676
	defaultFreeCurrent = 20
)

// Config describes the configuration of a simulated motor.
type Config struct {
	MaxRPM          float64 `json:"max_rpm,omitempty"`
	FreeCurrentAmps float64 `json:"free_current_amps,omitempty"`
	Invert          bool    `json:"invert,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.MaxRPM < 0 {
		return nil, utils.NewOutOfRangeError(path+".max_rpm", cfg.MaxRPM, 0, math.Inf(1))
	}
	if cfg.FreeCurrentAmps < 0 {
		return nil, utils.NewOutOfRangeError(path+".free_current_amps", cfg.FreeCurrentAmps, 0, math.Inf(1))
	}
	return nil, nil
}

func init() {
	resource.RegisterComponent(motor.API, Model, resource.Registration[motor.Motor, *Config]{
		Constructor: func(
			ctx context.Context,
			deps resource.Dependencies,
			conf resource.Config,
			logger logging.Logger,
		) (motor.Motor, error) {
			mcfg, err := resource.NativeConfig[*Config](conf)
			if err != nil {
				return nil, err
			}
			return NewMotor(conf.ResourceName(), mcfg, clock.New(), logger), nil
		},
	})
}

// A Motor integrates its commanded power into a position over time and reports a current that
// follows the load, optionally scripted by tests.
type Motor struct {
	resource.Named

	mu          sync.Mutex
	clk         clock.Clock
	logger      logging.Logger
	maxRPM      float64
	freeCurrent float64
	invert      bool

	powerPct   float64
	position   float64
	lastUpdate time.Time

	fixedCurrent  *float64
	queuedCurrent []float64
	err           error
	powerHistory  []float64
}

var _ motor.Motor = (*Motor)(nil)

// NewMotor returns a simulated motor.
func NewMotor(name resource.Name, cfg *Config, clk clock.Clock, logger logging.Logger) *Motor {
	if cfg == nil {
		cfg = &Config{}
	}
	m := &Motor{
		Named:       name.AsNamed(),
		clk:         clk,
		logger:      logger,
		maxRPM:      cfg.MaxRPM,
		freeCurrent: cfg.FreeCurrentAmps,
		invert:      cfg.Invert,
		lastUpdate:  clk.Now(),
	}
	if m.maxRPM == 0 {
		m.maxRPM = defaultMaxRPM
	}
	if m.freeCurrent == 0 {
		m.freeCurrent = defaultFreeCurrent
	}
	return m
}

// Must hold mu.
func (m *Motor) integrate() {
	now := m.clk.Now()
	elapsed := now.Sub(m.lastUpdate).Minutes()
	m.lastUpdate = now
	direction := 1.0
	if m.invert {
		direction = -1
	}
	m.position += direction * m.powerPct * m.maxRPM * elapsed
}

// SetPower sets the power, clamped to [-1, 1].
func (m *Motor) SetPower(ctx context.Context, powerPct float64) error {
	if !utils.IsFinite(powerPct) {
		return motor.NewInvalidPowerError(m.Name().Name, powerPct)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.integrate()
	m.powerPct = utils.Clamp(powerPct, -1, 1)
	m.powerHistory = append(m.powerHistory, m.powerPct)
	return nil
}

// Power returns the last commanded power.
func (m *Motor) Power(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.powerPct, nil
}

// Position returns the simulated position in rotations.
func (m *Motor) Position(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.integrate()
	return m.position, nil
}

// Current returns the next queued reading, else the fixed reading, else a current proportional to
// the commanded power.
func (m *Motor) Current(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if len(m.queuedCurrent) > 0 {
		next := m.queuedCurrent[0]
		m.queuedCurrent = m.queuedCurrent[1:]
		return next, nil
	}
	if m.fixedCurrent != nil {
		return *m.fixedCurrent, nil
	}
	return m.freeCurrent * math.Abs(m.powerPct), nil
}

// ResetZeroPosition makes the current position plus offset the new zero.
func (m *Motor) ResetZeroPosition(ctx context.Context, offset float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	m.position = -offset
	return nil
}

// Stop sets the power to zero.
func (m *Motor) Stop(ctx context.Context) error {
	return m.SetPower(ctx, 0)
}

// Close stops the motor.
func (m *Motor) Close(ctx context.Context) error {
	m.mu.Lock()
	m.err = nil
	m.mu.Unlock()
	return m.Stop(ctx)
}

// SetPosition overrides the simulated position.
func (m *Motor) SetPosition(position float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	m.position = position
}

// SetCurrent fixes the reported current. Queued readings still take precedence.
func (m *Motor) SetCurrent(amps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixedCurrent = &amps
}

// QueueCurrents scripts the next current readings, returned one per call to Current.
func (m *Motor) QueueCurrents(amps ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queuedCurrent = append(m.queuedCurrent, amps...)
}

// SetError makes every following SetPower, Position and Current fail with err. Nil clears it.
func (m *Motor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// PowerHistory returns every power set so far.
func (m *Motor) PowerHistory() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.powerHistory...)
}
