package commands

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/components/arm"
	"github.com/frc-reefscape/reefbot/components/roller"
	"github.com/frc-reefscape/reefbot/control"
	"github.com/frc-reefscape/reefbot/logging"
)

// Pickup step timeouts.
const (
	DefaultArmTimeout    = 3 * time.Second
	DefaultTrackTimeout  = 5 * time.Second
	DefaultIntakeTimeout = 10 * time.Second
	DefaultStowTimeout   = 3 * time.Second
)

// PickupConfig bounds each step of the pickup sequence.
type PickupConfig struct {
	ArmTimeout    time.Duration `json:"arm_timeout,omitempty"`
	TrackTimeout  time.Duration `json:"track_timeout,omitempty"`
	IntakeTimeout time.Duration `json:"intake_timeout,omitempty"`
	StowTimeout   time.Duration `json:"stow_timeout,omitempty"`
}

// WithDefaults returns a copy with every zero timeout set to its default.
func (cfg PickupConfig) WithDefaults() PickupConfig {
	if cfg.ArmTimeout == 0 {
		cfg.ArmTimeout = DefaultArmTimeout
	}
	if cfg.TrackTimeout == 0 {
		cfg.TrackTimeout = DefaultTrackTimeout
	}
	if cfg.IntakeTimeout == 0 {
		cfg.IntakeTimeout = DefaultIntakeTimeout
	}
	if cfg.StowTimeout == 0 {
		cfg.StowTimeout = DefaultStowTimeout
	}
	return cfg
}

// PickupResult describes the latest pickup run.
type PickupResult struct {
	RunID     string
	Confirmed bool
	Finished  bool
}

// Pickup is the automated algae pickup: lower the arm while centering on the target, run the
// intake until the roller current drops, then stow the arm. A step that times out is logged and
// the sequence carries on.
type Pickup struct {
	arm     *arm.Arm
	roller  *roller.Roller
	tracker *Tracker
	clk     clock.Clock
	logger  logging.Logger
	errs    *errorThrottle

	mu       sync.Mutex
	cfg      PickupConfig
	result   PickupResult
	detector *control.CurrentDropDetector
}

// NewPickup returns the pickup sequence over the subsystems.
func NewPickup(
	a *arm.Arm,
	r *roller.Roller,
	tracker *Tracker,
	cfg PickupConfig,
	clk clock.Clock,
	logger logging.Logger,
) *Pickup {
	return &Pickup{
		arm:     a,
		roller:  r,
		tracker: tracker,
		clk:     clk,
		logger:  logger,
		errs:    newErrorThrottle(logger),
		cfg:     cfg.WithDefaults(),
	}
}

// Reconfigure swaps the timeouts, taking effect the next time Command is called.
func (p *Pickup) Reconfigure(cfg PickupConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg.WithDefaults()
}

// Result reports the latest run.
func (p *Pickup) Result() PickupResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *Pickup) begin(context.Context) {
	rcfg := p.roller.Config()
	p.mu.Lock()
	p.result = PickupResult{RunID: uuid.NewString()}
	p.detector = control.NewCurrentDropDetector(rcfg.BaselineCurrent, rcfg.DropThreshold, rcfg.DebounceCycles)
	id := p.result.RunID
	p.mu.Unlock()
	p.logger.Infow("starting automated algae pickup", "run", id)
}

func (p *Pickup) runID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result.RunID
}

// pickedUp polls the roller current once and reports whether the drop is confirmed.
func (p *Pickup) pickedUp(ctx context.Context) bool {
	amps, err := p.roller.Current(ctx)
	if err != nil {
		p.errs.check(RequireRoller, err)
		return false
	}
	p.mu.Lock()
	confirmed := p.detector.Update(amps)
	if confirmed {
		p.result.Confirmed = true
	}
	p.mu.Unlock()
	if confirmed {
		p.logger.Infow("current drop detected, algae picked up", "run", p.runID(), "current", amps)
	}
	return confirmed
}

// Command builds the sequence.
func (p *Pickup) Command() *command.Command {
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()
	acfg := p.arm.Config()

	seq := command.Sequence("AlgaePickupSequence",
		command.Instant("begin pickup", p.begin),
		command.Parallel("approach",
			command.WithTimeout(MoveArmToPosition(p.arm, acfg.IntakePosition, acfg.Tolerance, p.logger),
				p.clk, cfg.ArmTimeout, p.logger),
			command.WithTimeout(p.tracker.Command(), p.clk, cfg.TrackTimeout, p.logger),
		),
		command.Instant("start intake", func(ctx context.Context) {
			p.errs.check(RequireRoller, p.roller.Run(ctx, p.roller.Config().AlgaeInSpeed))
			p.logger.Infow("intake started, waiting for the driver to drive forward", "run", p.runID())
		}, RequireRoller),
		command.WithTimeout(command.WaitUntil("wait for pickup", p.pickedUp), p.clk, cfg.IntakeTimeout, p.logger),
		command.Instant("stop intake", func(ctx context.Context) {
			p.errs.check(RequireRoller, p.roller.Stop(ctx))
			p.logger.Infow("intake stopped", "run", p.runID())
		}, RequireRoller),
		command.WithTimeout(MoveArmToPosition(p.arm, acfg.SafePosition, acfg.Tolerance, p.logger),
			p.clk, cfg.StowTimeout, p.logger),
		command.Instant("finish pickup", func(context.Context) {
			p.mu.Lock()
			p.result.Finished = true
			result := p.result
			p.mu.Unlock()
			p.logger.Infow("algae pickup sequence complete", "run", result.RunID, "confirmed", result.Confirmed)
		}),
	)

	end := seq.OnEnd
	seq.OnEnd = func(ctx context.Context, interrupted bool) {
		end(ctx, interrupted)
		if interrupted {
			p.errs.check(RequireRoller, p.roller.Stop(ctx))
			p.logger.Infow("algae pickup interrupted", "run", p.runID())
		}
	}
	return seq
}
