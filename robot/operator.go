package robot

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/commands"
	"github.com/frc-reefscape/reefbot/services/vision/hybrid"
)

// Autonomous routine names.
const (
	AutoNone           = "none"
	AutoPickupAlgae    = "pickup_algae"
	AutoScoreCoral     = "score_coral"
	AutoCenterOnTarget = "center_on_target"
)

// Manual command names.
const (
	ManualArmUp       = "arm_up"
	ManualArmDown     = "arm_down"
	ManualAlgaeIn     = "algae_in"
	ManualCoralOut    = "coral_out"
	ManualClimberUp   = "climber_up"
	ManualClimberDown = "climber_down"

	// Held: run until cancelled.
	ManualAlgaeOut   = "algae_out"
	ManualArmAxis    = "arm_axis"
	ManualRollerAxis = "roller_axis"
)

// Durations of the timed manual commands and routines.
const (
	ManualTimedDuration = 500 * time.Millisecond
	ScoreCoralDuration  = time.Second
)

func (r *Robot) autonomousRoutines() map[string]func() *command.Command {
	return map[string]func() *command.Command{
		AutoNone: nil,
		AutoPickupAlgae: func() *command.Command {
			return r.pickup.Command()
		},
		AutoScoreCoral: func() *command.Command {
			acfg := r.arm.Config()
			return command.Sequence("ScoreCoral",
				command.WithTimeout(
					commands.MoveArmToPosition(r.arm, acfg.SafePosition, acfg.Tolerance, r.logger),
					r.clk, r.cfg.Pickup.ArmTimeout, r.logger),
				commands.CoralOutTimed(r.roller, r.clk, ScoreCoralDuration, r.logger),
			)
		},
		AutoCenterOnTarget: func() *command.Command {
			return command.WithTimeout(r.tracker.Command(), r.clk, r.cfg.Pickup.TrackTimeout, r.logger)
		},
	}
}

// AutonomousRoutines lists the routine names that can be selected.
func (r *Robot) AutonomousRoutines() []string {
	names := make([]string, 0, len(r.routines))
	for name := range r.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetAutonomous selects the routine StartAutonomous runs.
func (r *Robot) SetAutonomous(name string) error {
	if _, ok := r.routines[name]; !ok {
		return errors.Errorf("unknown autonomous routine %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autonomous = name
	return nil
}

// StartAutonomous enables the robot and schedules the selected routine. It returns the routine's
// name.
func (r *Robot) StartAutonomous(ctx context.Context) (string, error) {
	if err := r.SetEnabled(ctx, true); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := r.autonomous
	build := r.routines[name]
	if build == nil {
		r.logger.Info("no autonomous routine selected")
		return name, nil
	}
	r.autoCmd = build()
	r.logger.Infow("starting autonomous routine", "routine", name)
	r.scheduler.Schedule(ctx, r.autoCmd)
	return name, nil
}

// CancelAutonomous cancels the autonomous routine if it is still running.
func (r *Robot) CancelAutonomous(ctx context.Context) {
	r.cancel(ctx, &r.autoCmd)
}

// SetVisionMode switches how the two vision sources are combined.
func (r *Robot) SetVisionMode(mode hybrid.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vision.SetMode(mode)
}

// VisionMode returns the active fusion mode.
func (r *Robot) VisionMode() hybrid.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vision.Mode()
}

// SetDriverForward sets the driver's forward input in [-1, 1], used while intaking.
func (r *Robot) SetDriverForward(v float64) {
	r.driverInput.Store(v)
}

// SetOperatorArm sets the operator's arm axis in [-1, 1], used by the arm_axis manual command.
func (r *Robot) SetOperatorArm(v float64) {
	r.armInput.Store(v)
}

// SetOperatorRoller sets the operator's roller axis in [-1, 1], used by the roller_axis manual
// command.
func (r *Robot) SetOperatorRoller(v float64) {
	r.rollerInput.Store(v)
}

// ScheduleTracking centers the robot on the current target.
func (r *Robot) ScheduleTracking(ctx context.Context) {
	r.schedule(ctx, r.trackCmd)
}

// CancelTracking stops tracking.
func (r *Robot) CancelTracking(ctx context.Context) {
	r.cancel(ctx, &r.trackCmd)
}

// SchedulePickupSequence starts a new automated algae pickup.
func (r *Robot) SchedulePickupSequence(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pickupCmd = r.pickup.Command()
	r.scheduler.Schedule(ctx, r.pickupCmd)
}

// CancelPickupSequence interrupts the pickup, stopping the intake.
func (r *Robot) CancelPickupSequence(ctx context.Context) {
	r.cancel(ctx, &r.pickupCmd)
}

// PickupResult describes the latest pickup run.
func (r *Robot) PickupResult() commands.PickupResult {
	return r.pickup.Result()
}

// ScheduleIntake starts the driver assisted intake.
func (r *Robot) ScheduleIntake(ctx context.Context) {
	r.schedule(ctx, r.intakeCmd)
}

// CancelIntake stops the intake.
func (r *Robot) CancelIntake(ctx context.Context) {
	r.cancel(ctx, &r.intakeCmd)
}

// ScheduleDriveToGamePiece drives up to the game piece the primary camera sees.
func (r *Robot) ScheduleDriveToGamePiece(ctx context.Context) {
	r.schedule(ctx, r.driveCmd)
}

// CancelDriveToGamePiece stops driving to the game piece.
func (r *Robot) CancelDriveToGamePiece(ctx context.Context) {
	r.cancel(ctx, &r.driveCmd)
}

// ScheduleManual runs one of the manual commands while the robot is enabled. Timed ones end on
// their own and the others run until cancelled.
func (r *Robot) ScheduleManual(ctx context.Context, name string) error {
	if !r.enabled.Load() {
		return errors.Errorf("cannot run manual command %q while disabled", name)
	}
	var cmd *command.Command
	switch name {
	case ManualArmUp:
		cmd = commands.ArmUpTimed(r.arm, r.clk, ManualTimedDuration, r.logger)
	case ManualArmDown:
		cmd = commands.ArmDownTimed(r.arm, r.clk, ManualTimedDuration, r.logger)
	case ManualAlgaeIn:
		cmd = commands.AlgaeInTimed(r.roller, r.clk, ManualTimedDuration, r.logger)
	case ManualCoralOut:
		cmd = commands.CoralOutTimed(r.roller, r.clk, ManualTimedDuration, r.logger)
	case ManualClimberUp:
		cmd = commands.ClimberUp(r.climber, r.logger)
	case ManualClimberDown:
		cmd = commands.ClimberDown(r.climber, r.logger)
	case ManualAlgaeOut:
		cmd = commands.RollerJog("AlgaeOut", r.roller, r.roller.Config().AlgaeOutSpeed, r.logger)
	case ManualArmAxis:
		cmd = commands.RunArm(r.arm, r.armInput.Load, r.logger)
	case ManualRollerAxis:
		cmd = commands.RunRoller(r.roller, r.rollerInput.Load, r.logger)
	default:
		return errors.Errorf("unknown manual command %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manualCmds[name] = cmd
	r.scheduler.Schedule(ctx, cmd)
	return nil
}

// CancelManual cancels a manual command started with ScheduleManual.
func (r *Robot) CancelManual(ctx context.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd := r.manualCmds[name]; cmd != nil {
		r.scheduler.Cancel(ctx, cmd)
	}
}

// CancelAll cancels every running command.
func (r *Robot) CancelAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.CancelAll(ctx)
}

func (r *Robot) schedule(ctx context.Context, cmd *command.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.Schedule(ctx, cmd)
}

func (r *Robot) cancel(ctx context.Context, cmd **command.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if *cmd != nil {
		r.scheduler.Cancel(ctx, *cmd)
	}
}
