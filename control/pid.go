// Package control implements the feedback controllers and signal conditioning used by the robot
// commands.
package control

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultPeriod is the nominal control loop period.
const DefaultPeriod = 20 * time.Millisecond

// PIDConfig configures a PID controller.
type PIDConfig struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki,omitempty"`
	Kd float64 `json:"kd,omitempty"`
	// IntegralLimit bounds the magnitude of the integral term. Zero means unbounded.
	IntegralLimit float64 `json:"integral_limit,omitempty"`
	// Tolerance is the error under which AtSetpoint reports true.
	Tolerance float64 `json:"tolerance,omitempty"`
	// OutputLimit bounds the magnitude of the output. Zero means unbounded.
	OutputLimit float64 `json:"output_limit,omitempty"`
	// When set, the error wraps around so e.g. angles take the short way, with input range
	// [MinInput, MaxInput].
	Continuous bool          `json:"continuous,omitempty"`
	MinInput   float64       `json:"min_input,omitempty"`
	MaxInput   float64       `json:"max_input,omitempty"`
	Period     time.Duration `json:"period,omitempty"`
}

// Validate ensures the config describes a usable controller.
func (cfg PIDConfig) Validate(path string) error {
	if cfg.Kp == 0 && cfg.Ki == 0 && cfg.Kd == 0 {
		return errors.Errorf("%s: pid should have at least one of kp, ki or kd", path)
	}
	if cfg.IntegralLimit < 0 || cfg.OutputLimit < 0 || cfg.Tolerance < 0 {
		return errors.Errorf("%s: pid limits and tolerance must not be negative", path)
	}
	if cfg.Continuous && cfg.MaxInput <= cfg.MinInput {
		return errors.Errorf("%s: continuous pid needs max_input > min_input", path)
	}
	return nil
}

// PID is a discrete PID controller stepped once per control period.
type PID struct {
	mu         sync.Mutex
	cfg        PIDConfig
	integral   float64
	prevError  float64
	hasPrev    bool
	lastError  float64
	lastOutput float64
}

// NewPID returns a controller for the config.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate("pid"); err != nil {
		return nil, err
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	return &PID{cfg: cfg}, nil
}

// Calculate steps the controller and returns the output for the measurement.
func (p *PID) Calculate(measurement, setpoint float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	dt := p.cfg.Period.Seconds()
	err := setpoint - measurement
	if p.cfg.Continuous {
		err = wrapError(err, p.cfg.MaxInput-p.cfg.MinInput)
	}

	p.integral += err * dt
	if p.cfg.IntegralLimit > 0 && p.cfg.Ki != 0 {
		bound := p.cfg.IntegralLimit / math.Abs(p.cfg.Ki)
		p.integral = math.Max(-bound, math.Min(bound, p.integral))
	}
	deriv := 0.0
	if p.hasPrev {
		deriv = (err - p.prevError) / dt
	}
	output := p.cfg.Kp*err + p.cfg.Ki*p.integral + p.cfg.Kd*deriv
	if p.cfg.OutputLimit > 0 {
		output = math.Max(-p.cfg.OutputLimit, math.Min(p.cfg.OutputLimit, output))
	}

	p.prevError = err
	p.hasPrev = true
	p.lastError = err
	p.lastOutput = output
	return output
}

// AtSetpoint reports whether the last error was within tolerance.
func (p *PID) AtSetpoint() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasPrev && math.Abs(p.lastError) <= p.cfg.Tolerance
}

// Error returns the last computed error.
func (p *PID) Error() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// Reset clears the accumulated state.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.integral = 0
	p.prevError = 0
	p.hasPrev = false
	p.lastError = 0
	p.lastOutput = 0
}

// UpdateConfig replaces the gains and resets the controller.
func (p *PID) UpdateConfig(cfg PIDConfig) error {
	if err := cfg.Validate("pid"); err != nil {
		return err
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	p.Reset()
	return nil
}

// Config returns the current configuration.
func (p *PID) Config() PIDConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

func wrapError(err, span float64) float64 {
	half := span / 2
	err = math.Mod(err+half, span)
	if err < 0 {
		err += span
	}
	return err - half
}
