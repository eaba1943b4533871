// Package roller drives the intake roller and watches its current draw for game piece contact.
package roller

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

// Roller defaults. Speeds are motor power, negative pulls a game piece in.
const (
	DefaultAlgaeInSpeed    = -0.4
	DefaultAlgaeOutSpeed   = 0.4
	DefaultCoralOutSpeed   = -0.2
	DefaultCoralStackSpeed = -1.0
	DefaultBaselineCurrent = 20.0
	DefaultDropThreshold   = 5.0
	DefaultSpikeThreshold  = 35.0
	DefaultDebounceCycles  = 3
)

// Config holds the roller's tunables.
type Config struct {
	Motor           string  `json:"motor"`
	AlgaeInSpeed    float64 `json:"algae_in_speed,omitempty"`
	AlgaeOutSpeed   float64 `json:"algae_out_speed,omitempty"`
	CoralOutSpeed   float64 `json:"coral_out_speed,omitempty"`
	CoralStackSpeed float64 `json:"coral_stack_speed,omitempty"`
	BaselineCurrent float64 `json:"baseline_current_amps,omitempty"`
	DropThreshold   float64 `json:"drop_threshold_amps,omitempty"`
	SpikeThreshold  float64 `json:"spike_threshold_amps,omitempty"`
	DebounceCycles  int     `json:"debounce_cycles,omitempty"`
}

// WithDefaults returns a copy with every zero field set to its default.
func (cfg Config) WithDefaults() Config {
	if cfg.Motor == "" {
		cfg.Motor = "roller"
	}
	if cfg.AlgaeInSpeed == 0 {
		cfg.AlgaeInSpeed = DefaultAlgaeInSpeed
	}
	if cfg.AlgaeOutSpeed == 0 {
		cfg.AlgaeOutSpeed = DefaultAlgaeOutSpeed
	}
	if cfg.CoralOutSpeed == 0 {
		cfg.CoralOutSpeed = DefaultCoralOutSpeed
	}
	if cfg.CoralStackSpeed == 0 {
		cfg.CoralStackSpeed = DefaultCoralStackSpeed
	}
	if cfg.BaselineCurrent == 0 {
		cfg.BaselineCurrent = DefaultBaselineCurrent
	}
	if cfg.DropThreshold == 0 {
		cfg.DropThreshold = DefaultDropThreshold
	}
	if cfg.SpikeThreshold == 0 {
		cfg.SpikeThreshold = DefaultSpikeThreshold
	}
	if cfg.DebounceCycles == 0 {
		cfg.DebounceCycles = DefaultDebounceCycles
	}
	return cfg
}

// Validate ensures all parts of the config are valid and returns the motor as a dependency.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.Motor == "" {
		return nil, errors.Errorf("%s.motor is required", path)
	}
	for field, v := range map[string]float64{
		".algae_in_speed":    cfg.AlgaeInSpeed,
		".algae_out_speed":   cfg.AlgaeOutSpeed,
		".coral_out_speed":   cfg.CoralOutSpeed,
		".coral_stack_speed": cfg.CoralStackSpeed,
	} {
		if math.Abs(v) > 1 {
			return nil, utils.NewOutOfRangeError(path+field, v, -1, 1)
		}
	}
	for field, v := range map[string]float64{
		".baseline_current_amps": cfg.BaselineCurrent,
		".drop_threshold_amps":   cfg.DropThreshold,
		".spike_threshold_amps":  cfg.SpikeThreshold,
	} {
		if v < 0 {
			return nil, utils.NewOutOfRangeError(path+field, v, 0, math.Inf(1))
		}
	}
	if cfg.DebounceCycles < 0 {
		return nil, utils.NewOutOfRangeError(path+".debounce_cycles", float64(cfg.DebounceCycles), 0, math.Inf(1))
	}
	return []string{cfg.Motor}, nil
}

// Roller is the intake roller subsystem.
type Roller struct {
	motor  motor.Motor
	sink   telemetry.Sink
	logger logging.Logger

	mu          sync.RWMutex
	cfg         Config
	calibrator  *Calibrator
	lastCurrent float64
	// set by Current, cleared by Periodic.
	freshCurrent bool
}

// New returns a roller driven by m.
func New(m motor.Motor, cfg Config, sink telemetry.Sink, logger logging.Logger) *Roller {
	if sink == nil {
		sink = telemetry.Noop
	}
	return &Roller{
		motor:  m,
		cfg:    cfg.WithDefaults(),
		sink:   telemetry.Prefixed(sink, "Roller"),
		logger: logger,
	}
}

// Config returns the active tunables.
func (r *Roller) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Reconfigure swaps the tunables.
func (r *Roller) Reconfigure(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg.WithDefaults()
}

// Run drives the roller at speed in [-1, 1].
func (r *Roller) Run(ctx context.Context, speed float64) error {
	return r.motor.SetPower(ctx, utils.Clamp(speed, -1, 1))
}

// Speed returns the last commanded speed.
func (r *Roller) Speed(ctx context.Context) (float64, error) {
	return r.motor.Power(ctx)
}

// Current reads the roller motor current in amps.
func (r *Roller) Current(ctx context.Context) (float64, error) {
	amps, err := r.motor.Current(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.lastCurrent = amps
	r.freshCurrent = true
	if r.calibrator != nil {
		r.calibrator.Add(amps)
	}
	r.mu.Unlock()
	return amps, nil
}

// HasCurrentDropped reports whether the current is more than drop below baseline.
func (r *Roller) HasCurrentDropped(ctx context.Context, baseline, drop float64) (bool, error) {
	amps, err := r.Current(ctx)
	if err != nil {
		return false, err
	}
	return baseline-amps > drop, nil
}

// Stop sets the roller output to zero.
func (r *Roller) Stop(ctx context.Context) error {
	return r.motor.Stop(ctx)
}

// StartCalibration begins recording every current reading.
func (r *Roller) StartCalibration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrator = NewCalibrator()
	r.logger.Info("recording roller current for calibration")
}

// StopCalibration stops recording and summarizes the samples.
func (r *Roller) StopCalibration() (Calibration, error) {
	r.mu.Lock()
	c := r.calibrator
	r.calibrator = nil
	r.mu.Unlock()
	if c == nil {
		return Calibration{}, errors.New("roller calibration was not started")
	}
	result, err := c.Result()
	if err != nil {
		return Calibration{}, err
	}
	r.logger.Infow("roller calibration finished",
		"samples", result.Samples, "baseline", result.Baseline, "suggested_drop", result.SuggestedDropThreshold)
	return result, nil
}

// periodicCurrent returns the reading taken since the last call, reading the motor only when
// nothing else has this cycle.
func (r *Roller) periodicCurrent(ctx context.Context) (float64, error) {
	r.mu.Lock()
	fresh, amps := r.freshCurrent, r.lastCurrent
	r.freshCurrent = false
	r.mu.Unlock()
	if fresh {
		return amps, nil
	}
	amps, err := r.Current(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.freshCurrent = false
	r.mu.Unlock()
	return amps, nil
}

// Periodic publishes the current and whether the configured thresholds would confirm a pickup.
// A reading already taken this cycle is reused.
func (r *Roller) Periodic(ctx context.Context) {
	cfg := r.Config()
	amps, err := r.periodicCurrent(ctx)
	if err != nil {
		r.logger.Debugw("cannot read roller current", "error", err)
		return
	}
	speed, err := r.Speed(ctx)
	if err != nil {
		r.logger.Debugw("cannot read roller speed", "error", err)
	}
	r.sink.Publish("Motor Current (Amps)", amps)
	r.sink.Publish("Motor Speed", speed)
	r.sink.Publish("Algae In Speed", cfg.AlgaeInSpeed)
	r.sink.Publish("Algae Out Speed", cfg.AlgaeOutSpeed)
	r.sink.Publish("CALIBRATE: Baseline Current", cfg.BaselineCurrent)
	r.sink.Publish("CALIBRATE: Drop Threshold", cfg.DropThreshold)
	r.sink.Publish("CALIBRATE: Would Trigger Pickup", cfg.BaselineCurrent-amps > cfg.DropThreshold)
}
