package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/components/arm"
	"github.com/frc-reefscape/reefbot/logging"
)

// MoveArmToPosition drives the arm proportionally toward target and finishes once within
// tolerance. It leaves the arm unpowered when it ends; it does not hold position.
func MoveArmToPosition(a *arm.Arm, target, tolerance float64, logger logging.Logger) *command.Command {
	errs := newErrorThrottle(logger)
	return &command.Command{
		Name:         fmt.Sprintf("MoveArmToPosition(%.2f)", target),
		Requirements: []string{RequireArm},
		OnExecute: func(ctx context.Context) {
			_, err := a.DriveToward(ctx, target)
			errs.check(RequireArm, err)
		},
		OnEnd: func(ctx context.Context, _ bool) {
			errs.check(RequireArm, a.RunArm(ctx, 0))
		},
		IsDone: func(ctx context.Context) bool {
			at, err := a.IsAtPosition(ctx, target, tolerance)
			return err == nil && at
		},
	}
}

// RunArm drives the arm at the speed supplied each cycle, e.g. from a joystick axis, and stops it
// when interrupted.
func RunArm(a *arm.Arm, speed func() float64, logger logging.Logger) *command.Command {
	errs := newErrorThrottle(logger)
	return command.RunEnd("RunArm",
		func(ctx context.Context) { errs.check(RequireArm, a.RunArm(ctx, speed())) },
		func(ctx context.Context) { errs.check(RequireArm, a.Stop(ctx)) },
		RequireArm)
}

// ArmUpTimed raises the arm for d, then leaves a small holding output.
func ArmUpTimed(a *arm.Arm, clk clock.Clock, d time.Duration, logger logging.Logger) *command.Command {
	return armTimed("ArmUpTimed", a, clk, d, logger, func(cfg arm.Config) (float64, float64) {
		return cfg.SpeedUp, cfg.HoldUp
	})
}

// ArmDownTimed lowers the arm for d, then leaves a small holding output.
func ArmDownTimed(a *arm.Arm, clk clock.Clock, d time.Duration, logger logging.Logger) *command.Command {
	return armTimed("ArmDownTimed", a, clk, d, logger, func(cfg arm.Config) (float64, float64) {
		return cfg.SpeedDown, cfg.HoldDown
	})
}

func armTimed(
	name string,
	a *arm.Arm,
	clk clock.Clock,
	d time.Duration,
	logger logging.Logger,
	speeds func(cfg arm.Config) (run, hold float64),
) *command.Command {
	errs := newErrorThrottle(logger)
	return command.Timed(&command.Command{
		Name:         name,
		Requirements: []string{RequireArm},
		OnExecute: func(ctx context.Context) {
			run, _ := speeds(a.Config())
			errs.check(RequireArm, a.RunArm(ctx, run))
		},
		OnEnd: func(ctx context.Context, _ bool) {
			_, hold := speeds(a.Config())
			errs.check(RequireArm, a.RunArm(ctx, hold))
		},
	}, clk, d)
}
