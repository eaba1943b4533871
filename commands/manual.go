package commands

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/components/climber"
	"github.com/frc-reefscape/reefbot/components/roller"
	"github.com/frc-reefscape/reefbot/logging"
)

// RunRoller runs the roller at the speed supplied each cycle and stops it when interrupted.
func RunRoller(r *roller.Roller, speed func() float64, logger logging.Logger) *command.Command {
	errs := newErrorThrottle(logger)
	return command.RunEnd("RunRoller",
		func(ctx context.Context) { errs.check(RequireRoller, r.Run(ctx, speed())) },
		func(ctx context.Context) { errs.check(RequireRoller, r.Stop(ctx)) },
		RequireRoller)
}

// RollerJog runs the roller at a fixed speed from when it is scheduled until it is interrupted.
func RollerJog(name string, r *roller.Roller, speed float64, logger logging.Logger) *command.Command {
	errs := newErrorThrottle(logger)
	return command.StartEnd(name,
		func(ctx context.Context) { errs.check(RequireRoller, r.Run(ctx, speed)) },
		func(ctx context.Context) { errs.check(RequireRoller, r.Stop(ctx)) },
		RequireRoller)
}

// AlgaeInTimed pulls algae in for d.
func AlgaeInTimed(r *roller.Roller, clk clock.Clock, d time.Duration, logger logging.Logger) *command.Command {
	return rollerTimed("AlgaeInTimed", r, clk, d, logger, func(cfg roller.Config) float64 { return cfg.AlgaeInSpeed })
}

// CoralOutTimed ejects coral for d.
func CoralOutTimed(r *roller.Roller, clk clock.Clock, d time.Duration, logger logging.Logger) *command.Command {
	return rollerTimed("CoralOutTimed", r, clk, d, logger, func(cfg roller.Config) float64 { return cfg.CoralOutSpeed })
}

func rollerTimed(
	name string,
	r *roller.Roller,
	clk clock.Clock,
	d time.Duration,
	logger logging.Logger,
	speed func(cfg roller.Config) float64,
) *command.Command {
	errs := newErrorThrottle(logger)
	return command.Timed(command.RunEnd(name,
		func(ctx context.Context) { errs.check(RequireRoller, r.Run(ctx, speed(r.Config()))) },
		func(ctx context.Context) { errs.check(RequireRoller, r.Run(ctx, 0)) },
		RequireRoller), clk, d)
}

// ClimberUp raises the climber while held.
func ClimberUp(c *climber.Climber, logger logging.Logger) *command.Command {
	return climberRun("ClimberUp", c, logger, func(cfg climber.Config) float64 { return cfg.SpeedUp })
}

// ClimberDown lowers the climber while held.
func ClimberDown(c *climber.Climber, logger logging.Logger) *command.Command {
	return climberRun("ClimberDown", c, logger, func(cfg climber.Config) float64 { return cfg.SpeedDown })
}

func climberRun(name string, c *climber.Climber, logger logging.Logger, speed func(cfg climber.Config) float64) *command.Command {
	errs := newErrorThrottle(logger)
	return command.RunEnd(name,
		func(ctx context.Context) { errs.check(RequireClimber, c.Run(ctx, speed(c.Config()))) },
		func(ctx context.Context) { errs.check(RequireClimber, c.Stop(ctx)) },
		RequireClimber)
}
