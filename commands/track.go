package commands

import (
	"context"
	"math"
	"sync"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/components/limelight"
	"github.com/frc-reefscape/reefbot/control"
	"github.com/frc-reefscape/reefbot/logging"
)

// Tracking defaults.
const (
	DefaultTrackKp         = 0.04
	DefaultTrackMinCommand = 0.05
	DefaultTrackMaxCommand = 0.5
	DefaultTrackDeadband   = 1.0
)

// TrackConfig tunes the target tracking loop.
type TrackConfig struct {
	Kp         float64 `json:"kp,omitempty"`
	MinCommand float64 `json:"min_command,omitempty"`
	MaxCommand float64 `json:"max_command,omitempty"`
	// Deadband in degrees inside which the target counts as centered.
	Deadband float64 `json:"deadband_deg,omitempty"`
	// Strafe corrects by driving sideways instead of turning.
	Strafe bool `json:"strafe,omitempty"`
	// Pipeline is selected on start when set.
	Pipeline *int `json:"pipeline,omitempty"`
	// RestoreLEDs hands the LEDs back to the pipeline when the command ends.
	RestoreLEDs bool `json:"restore_leds,omitempty"`
}

// WithDefaults returns a copy with every zero gain and limit set to its default.
func (cfg TrackConfig) WithDefaults() TrackConfig {
	if cfg.Kp == 0 {
		cfg.Kp = DefaultTrackKp
	}
	if cfg.MinCommand == 0 {
		cfg.MinCommand = DefaultTrackMinCommand
	}
	if cfg.MaxCommand == 0 {
		cfg.MaxCommand = DefaultTrackMaxCommand
	}
	if cfg.Deadband == 0 {
		cfg.Deadband = DefaultTrackDeadband
	}
	return cfg
}

// Validate checks the gains and limits.
func (cfg TrackConfig) Validate(path string) error {
	return cfg.controller().Validate(path)
}

func (cfg TrackConfig) controller() control.Proportional {
	return control.Proportional{Kp: cfg.Kp, MinCommand: cfg.MinCommand, MaxCommand: cfg.MaxCommand}
}

// TrackState is where the tracking loop is.
type TrackState int

// Tracking states.
const (
	Searching TrackState = iota
	Tracking
	Centered
)

func (s TrackState) String() string {
	switch s {
	case Searching:
		return "searching"
	case Tracking:
		return "tracking"
	case Centered:
		return "centered"
	}
	return "unknown"
}

// Tracker turns the robot until the target is centered. It holds station while there is no
// target and finishes once centered.
type Tracker struct {
	source TargetSource
	lights Illuminator
	drive  base.Base
	errs   *errorThrottle
	logger logging.Logger

	mu    sync.Mutex
	cfg   TrackConfig
	state TrackState
	steer float64
}

// NewTracker returns a tracker steering drive toward the source's target. lights may be nil.
func NewTracker(
	source TargetSource,
	lights Illuminator,
	drive base.Base,
	cfg TrackConfig,
	logger logging.Logger,
) *Tracker {
	return &Tracker{
		source: source,
		lights: lights,
		drive:  drive,
		errs:   newErrorThrottle(logger),
		logger: logger,
		cfg:    cfg.WithDefaults(),
	}
}

// Reconfigure swaps the gains. A running command picks them up on its next cycle.
func (t *Tracker) Reconfigure(cfg TrackConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg.WithDefaults()
}

// State returns the state after the last cycle.
func (t *Tracker) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Steer returns the last steering command, positive clockwise (a right turn).
func (t *Tracker) Steer() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.steer
}

func (t *Tracker) reset() TrackConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Searching
	t.steer = 0
	return t.cfg
}

// Step runs one cycle of the loop and returns the steering command.
func (t *Tracker) Step(ctx context.Context) float64 {
	t.mu.Lock()
	cfg := t.cfg
	t.mu.Unlock()

	state, steer := Searching, 0.0
	if t.source.HasTarget() {
		offset := t.source.HorizontalOffset()
		if math.Abs(offset) < cfg.Deadband {
			state = Centered
		} else {
			ctrl := cfg.controller()
			state = Tracking
			steer = ctrl.Command(-ctrl.Calculate(offset, 0))
		}
	}

	t.mu.Lock()
	if state != t.state {
		t.logger.Debugw("tracking state changed", "from", t.state, "to", state)
	}
	t.state = state
	t.steer = steer
	t.mu.Unlock()

	// Rotation is counter-clockwise positive and strafe is positive left, so a clockwise
	// correction is negative on either axis.
	speeds := base.ChassisSpeeds{Rotation: -steer}
	if cfg.Strafe {
		speeds = base.ChassisSpeeds{Strafe: -steer}
	}
	t.errs.check(RequireDrive, t.drive.Drive(ctx, speeds, false))
	return steer
}

// Command returns a command running the tracker until centered.
func (t *Tracker) Command() *command.Command {
	return &command.Command{
		Name:         "TrackTarget",
		Requirements: []string{RequireDrive, RequireVision},
		OnInit: func(ctx context.Context) {
			cfg := t.reset()
			if t.lights != nil {
				t.lights.SetLEDMode(limelight.LEDOn)
				if cfg.Pipeline != nil {
					t.lights.SetPipeline(*cfg.Pipeline)
				}
			}
		},
		OnExecute: func(ctx context.Context) { t.Step(ctx) },
		OnEnd: func(ctx context.Context, interrupted bool) {
			t.errs.check(RequireDrive, t.drive.Stop(ctx))
			t.mu.Lock()
			t.steer = 0
			restore := t.cfg.RestoreLEDs
			t.mu.Unlock()
			if restore && t.lights != nil {
				t.lights.SetLEDMode(limelight.LEDPipelineDefault)
			}
		},
		IsDone: func(context.Context) bool { return t.State() == Centered },
	}
}
