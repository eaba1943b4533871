// Package robot assembles the components, vision sources and commands of the robot and drives
// them from a single periodic control tick.
package robot

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/commands"
	"github.com/frc-reefscape/reefbot/components/arm"
	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/components/climber"
	"github.com/frc-reefscape/reefbot/components/coral"
	"github.com/frc-reefscape/reefbot/components/limelight"
	"github.com/frc-reefscape/reefbot/components/motor"
	"github.com/frc-reefscape/reefbot/components/roller"
	"github.com/frc-reefscape/reefbot/config"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/networktables"
	"github.com/frc-reefscape/reefbot/resource"
	"github.com/frc-reefscape/reefbot/services/vision/hybrid"
	"github.com/frc-reefscape/reefbot/telemetry"
	"github.com/frc-reefscape/reefbot/telemetry/sys"
	"github.com/frc-reefscape/reefbot/utils"
)

// options configures a Robot.
type options struct {
	clk clock.Clock
}

// Option configures how a Robot is set up.
type Option interface {
	apply(*options)
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{f: f}
}

// WithClock sets the clock used for the tick loop, timeouts and timed commands.
func WithClock(clk clock.Clock) Option {
	return newFuncOption(func(o *options) {
		o.clk = clk
	})
}

// Robot owns every part of the robot. Tick and the operator calls are serialized, so commands and
// subsystems only ever run on one goroutine at a time.
type Robot struct {
	logger  logging.Logger
	clk     clock.Clock
	sink    telemetry.Sink
	statser *sys.Statser

	// mu serializes ticks, operator calls and reconfiguration.
	mu  sync.Mutex
	cfg *config.Config

	resources resource.Dependencies
	drive     base.Base
	primary   *limelight.Camera
	secondary *coral.Coprocessor
	vision    *hybrid.Engine
	arm       *arm.Arm
	roller    *roller.Roller
	climber   *climber.Climber

	scheduler    *command.Scheduler
	tracker      *commands.Tracker
	pickup       *commands.Pickup
	intake       *commands.Intake
	driveToPiece *commands.DriveToPiece

	trackCmd    *command.Command
	intakeCmd   *command.Command
	driveCmd    *command.Command
	pickupCmd   *command.Command
	autoCmd     *command.Command
	manualCmds  map[string]*command.Command
	autonomous  string
	routines    map[string]func() *command.Command
	driverInput atomic.Float64
	armInput    atomic.Float64
	rollerInput atomic.Float64

	enabled  atomic.Bool
	ticks    atomic.Int64
	overruns atomic.Int64

	workersMu sync.Mutex
	workers   utils.StoppableWorkers
}

// New builds a robot from a validated config. nt is where the vision feeds arrive and where
// telemetry is published.
func New(
	ctx context.Context,
	cfg *config.Config,
	nt *networktables.Instance,
	logger logging.Logger,
	opts ...Option,
) (_ *Robot, err error) {
	var rOpts options
	for _, opt := range opts {
		opt.apply(&rOpts)
	}
	if rOpts.clk == nil {
		rOpts.clk = clock.New()
	}

	r := &Robot{
		logger:     logger,
		clk:        rOpts.clk,
		sink:       telemetry.NewTableSink(nt.Table(cfg.TelemetryTable)),
		cfg:        cfg,
		resources:  resource.Dependencies{},
		manualCmds: map[string]*command.Command{},
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, r.closeResources(ctx))
		}
	}()

	if statser, err := sys.NewSelfStatser(); err == nil {
		r.statser = statser
	} else {
		logger.Debugw("process usage unavailable", "error", err)
	}
	if len(cfg.Log) > 0 {
		logging.UpdateLoggerLevels(cfg.Log, logger)
	}
	if err := r.buildResources(ctx, cfg.Components); err != nil {
		return nil, err
	}
	if r.drive, err = base.FromDependencies(r.resources, cfg.Drive); err != nil {
		return nil, err
	}
	armMotor, err := motor.FromDependencies(r.resources, cfg.Arm.Motor)
	if err != nil {
		return nil, err
	}
	rollerMotor, err := motor.FromDependencies(r.resources, cfg.Roller.Motor)
	if err != nil {
		return nil, err
	}
	climberMotor, err := motor.FromDependencies(r.resources, cfg.Climber.Motor)
	if err != nil {
		return nil, err
	}

	r.primary = limelight.New(nt.Table(cfg.Vision.Primary.Table), cfg.Vision.Primary, r.clk, r.sink,
		logger.Sublogger("vision.primary"))
	r.secondary = coral.New(nt.Table(cfg.Vision.Secondary.Table), cfg.Vision.Secondary, r.sink,
		logger.Sublogger("vision.secondary"))
	r.vision = hybrid.New(r.primary, r.secondary, r.sink, logger.Sublogger("vision"))
	r.vision.SetMode(cfg.Vision.Mode)
	r.vision.SetTargetLabel(cfg.Vision.TargetLabel)

	r.arm = arm.New(armMotor, cfg.Arm, r.sink, logger.Sublogger("arm"))
	r.roller = roller.New(rollerMotor, cfg.Roller, r.sink, logger.Sublogger("roller"))
	r.climber = climber.New(climberMotor, cfg.Climber, logger.Sublogger("climber"))

	r.scheduler = command.NewScheduler(logger.Sublogger("scheduler"))
	r.tracker = commands.NewTracker(r.vision, r.primary, r.drive, cfg.Tracking, logger.Sublogger("track"))
	r.pickup = commands.NewPickup(r.arm, r.roller, r.tracker, cfg.Pickup, r.clk, logger.Sublogger("pickup"))
	if r.intake, err = commands.NewIntake(r.vision, r.primary, r.drive, r.arm, r.roller,
		r.driverInput.Load, cfg.Intake, logger.Sublogger("intake")); err != nil {
		return nil, err
	}
	if r.driveToPiece, err = commands.NewDriveToPiece(r.primary, r.drive, cfg.DriveToPiece,
		logger.Sublogger("drive_to_piece")); err != nil {
		return nil, err
	}
	r.trackCmd = r.tracker.Command()
	r.intakeCmd = r.intake.Command()
	r.driveCmd = r.driveToPiece.Command()

	if err := r.scheduler.SetDefaultCommand(commands.RequireRoller,
		command.Run("RollerIdle", func(ctx context.Context) {
			if err := r.roller.Stop(ctx); err != nil {
				r.logger.Debugw("cannot stop roller", "error", err)
			}
		}, commands.RequireRoller)); err != nil {
		return nil, err
	}

	r.routines = r.autonomousRoutines()
	if err := r.SetAutonomous(cfg.Autonomous); err != nil {
		return nil, err
	}
	return r, nil
}

// buildResources constructs the configured components in order. Every dependency has to appear
// before the component needing it.
func (r *Robot) buildResources(ctx context.Context, confs []resource.Config) error {
	for _, conf := range confs {
		for _, dep := range conf.Dependencies() {
			if !r.hasResourceNamed(dep) {
				return errors.Errorf("%s depends on %q which is not configured before it", conf.ResourceName(), dep)
			}
		}
		res, err := resource.Build(ctx, r.resources, conf, r.logger)
		if err != nil {
			return err
		}
		r.resources[conf.ResourceName()] = res
		r.logger.Debugw("built component", "name", conf.ResourceName(), "model", conf.Model)
	}
	return nil
}

func (r *Robot) hasResourceNamed(name string) bool {
	for rn := range r.resources {
		if rn.Name == name {
			return true
		}
	}
	return false
}

// usageEvery is how many ticks pass between process usage reports.
const usageEvery = 50

// Tick runs one control cycle: refresh both vision sources, run the scheduled commands when
// enabled, then publish telemetry.
func (r *Robot) Tick(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticks := r.ticks.Inc()

	r.primary.Update()
	r.secondary.Update()
	if r.enabled.Load() {
		r.scheduler.Run(ctx)
	}

	r.primary.Periodic()
	r.secondary.Periodic()
	r.vision.Periodic()
	r.arm.Periodic(ctx)
	r.roller.Periodic(ctx)
	r.sink.Publish("Robot/Enabled", r.enabled.Load())
	r.sink.Publish("Robot/Running", r.scheduler.Running())
	r.sink.Publish("Robot/Tracking State", r.tracker.State().String())
	r.sink.Publish("Robot/Intake State", r.intake.State().String())
	r.sink.Publish("Robot/Tick Overruns", r.overruns.Load())
	if r.statser != nil && ticks%usageEvery == 1 {
		if usage, err := r.statser.Usage(); err == nil {
			sys.Publish(r.sink, usage)
		}
	}
}

// Run ticks every configured period until ctx is done. A tick taking longer than the period is
// counted as an overrun.
func (r *Robot) Run(ctx context.Context) error {
	r.mu.Lock()
	period := r.cfg.Period()
	r.mu.Unlock()

	ticker := r.clk.Ticker(period)
	defer ticker.Stop()
	r.logger.Infow("control loop started", "period", period)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("control loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
		start := r.clk.Now()
		r.Tick(ctx)
		if took := r.clk.Since(start); took > period {
			n := r.overruns.Inc()
			r.logger.Debugw("control tick overran its period", "took", took, "period", period, "overruns", n)
		}
	}
}

// Start runs the control loop in the background until Stop or Close.
func (r *Robot) Start() {
	r.workersMu.Lock()
	defer r.workersMu.Unlock()
	if r.workers != nil {
		return
	}
	r.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Errorw("control loop failed", "error", err)
		}
	})
}

// Stop stops a loop started with Start.
func (r *Robot) Stop() {
	r.workersMu.Lock()
	workers := r.workers
	r.workers = nil
	r.workersMu.Unlock()
	if workers != nil {
		workers.Stop()
	}
}

// SetEnabled enables or disables the robot. Disabling cancels every command and stops every
// actuator.
func (r *Robot) SetEnabled(ctx context.Context, enabled bool) error {
	if r.enabled.Swap(enabled) == enabled {
		return nil
	}
	r.logger.Infow("robot enabled state changed", "enabled", enabled)
	if enabled {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.CancelAll(ctx)
	return r.stopActuators(ctx)
}

// Enabled reports whether commands are running.
func (r *Robot) Enabled() bool {
	return r.enabled.Load()
}

// Must hold mu.
func (r *Robot) stopActuators(ctx context.Context) error {
	return multierr.Combine(
		r.drive.Stop(ctx),
		r.arm.Stop(ctx),
		r.roller.Stop(ctx),
		r.climber.Stop(ctx),
	)
}

// Reconfigure applies the tunables of a new config. Component changes need a restart and are only
// logged. The tick period is picked up the next time the loop starts.
func (r *Robot) Reconfigure(ctx context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !sameComponents(r.cfg, cfg) {
		r.logger.Warn("component changes are ignored until restart")
	}
	if cfg.Period() != r.cfg.Period() {
		r.logger.Warnw("tick period changes take effect on restart", "period", cfg.Period())
	}
	if _, ok := r.routines[cfg.Autonomous]; !ok {
		return errors.Errorf("unknown autonomous routine %q", cfg.Autonomous)
	}
	if err := r.intake.Reconfigure(cfg.Intake); err != nil {
		return err
	}
	if err := r.driveToPiece.Reconfigure(cfg.DriveToPiece); err != nil {
		return err
	}

	next := *cfg
	next.Components, next.Drive = r.cfg.Components, r.cfg.Drive
	next.Arm.Motor, next.Roller.Motor, next.Climber.Motor = r.cfg.Arm.Motor, r.cfg.Roller.Motor, r.cfg.Climber.Motor

	r.autonomous = next.Autonomous
	r.vision.SetMode(next.Vision.Mode)
	r.vision.SetTargetLabel(next.Vision.TargetLabel)
	r.tracker.Reconfigure(next.Tracking)
	r.pickup.Reconfigure(next.Pickup)
	r.arm.Reconfigure(next.Arm)
	r.roller.Reconfigure(next.Roller)
	r.climber.Reconfigure(next.Climber)
	logging.UpdateLoggerLevels(next.Log, r.logger)
	r.cfg = &next
	r.logger.Infow("robot reconfigured", "vision_mode", cfg.Vision.Mode, "autonomous", cfg.Autonomous)
	return nil
}

func sameComponents(a, b *config.Config) bool {
	if a.Drive != b.Drive || a.Arm.Motor != b.Arm.Motor || a.Roller.Motor != b.Roller.Motor ||
		a.Climber.Motor != b.Climber.Motor || len(a.Components) != len(b.Components) {
		return false
	}
	for i := range a.Components {
		if a.Components[i].ResourceName() != b.Components[i].ResourceName() ||
			a.Components[i].Model != b.Components[i].Model {
			return false
		}
	}
	return true
}

// Config returns the config in effect.
func (r *Robot) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Status is a snapshot of the robot for operators.
type Status struct {
	Enabled    bool
	Ticks      int64
	Overruns   int64
	Running    []string
	VisionMode hybrid.Mode
	HasTarget  bool
	Autonomous string
	Pickup     commands.PickupResult
}

// Status returns a snapshot of the robot.
func (r *Robot) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Enabled:    r.enabled.Load(),
		Ticks:      r.ticks.Load(),
		Overruns:   r.overruns.Load(),
		Running:    r.scheduler.Running(),
		VisionMode: r.vision.Mode(),
		HasTarget:  r.vision.HasTarget(),
		Autonomous: r.autonomous,
		Pickup:     r.pickup.Result(),
	}
}

// Close stops the loop, cancels every command and closes every component.
func (r *Robot) Close(ctx context.Context) error {
	r.Stop()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.CancelAll(ctx)
	return r.closeResources(ctx)
}

func (r *Robot) closeResources(ctx context.Context) error {
	var err error
	for name, res := range r.resources {
		if closeErr := res.Close(ctx); closeErr != nil {
			err = multierr.Combine(err, errors.Wrapf(closeErr, "cannot close %s", name))
		}
	}
	r.resources = resource.Dependencies{}
	return err
}

// Period returns the tick period of the config in effect.
func (r *Robot) Period() time.Duration {
	return r.Config().Period()
}
