package command

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/frc-reefscape/reefbot/logging"
)

// Instant runs fn once and finishes.
func Instant(name string, fn func(ctx context.Context), requirements ...string) *Command {
	return &Command{
		Name:         name,
		Requirements: requirements,
		OnInit:       fn,
		IsDone:       func(context.Context) bool { return true },
	}
}

// Run calls fn every cycle until interrupted.
func Run(name string, fn func(ctx context.Context), requirements ...string) *Command {
	return &Command{Name: name, Requirements: requirements, OnExecute: fn}
}

// RunEnd calls run every cycle and end once when interrupted.
func RunEnd(name string, run, end func(ctx context.Context), requirements ...string) *Command {
	return &Command{
		Name:         name,
		Requirements: requirements,
		OnExecute:    run,
		OnEnd:        func(ctx context.Context, _ bool) { end(ctx) },
	}
}

// StartEnd calls start once when scheduled and end once when interrupted.
func StartEnd(name string, start, end func(ctx context.Context), requirements ...string) *Command {
	return &Command{
		Name:         name,
		Requirements: requirements,
		OnInit:       start,
		OnEnd:        func(ctx context.Context, _ bool) { end(ctx) },
	}
}

// WaitUntil finishes once cond holds. cond is evaluated once per cycle.
func WaitUntil(name string, cond func(ctx context.Context) bool) *Command {
	return &Command{Name: name, IsDone: cond}
}

// Wait finishes once d has elapsed on clk.
func Wait(clk clock.Clock, d time.Duration) *Command {
	var start time.Time
	return &Command{
		Name:   "wait " + d.String(),
		OnInit: func(context.Context) { start = clk.Now() },
		IsDone: func(context.Context) bool { return clk.Since(start) >= d },
	}
}

// Log logs msg at info level and finishes.
func Log(logger logging.Logger, msg string, keysAndValues ...interface{}) *Command {
	return Instant("log", func(context.Context) { logger.Infow(msg, keysAndValues...) })
}

// Sequence runs the commands one after another. It requires everything its commands require.
func Sequence(name string, cmds ...*Command) *Command {
	idx := 0
	return &Command{
		Name:         name,
		Requirements: unionRequirements(cmds),
		OnInit: func(ctx context.Context) {
			idx = 0
			if len(cmds) > 0 {
				cmds[0].initialize(ctx)
			}
		},
		OnExecute: func(ctx context.Context) {
			if idx >= len(cmds) {
				return
			}
			current := cmds[idx]
			current.execute(ctx)
			if !current.isFinished(ctx) {
				return
			}
			current.end(ctx, false)
			idx++
			if idx < len(cmds) {
				cmds[idx].initialize(ctx)
			}
		},
		OnEnd: func(ctx context.Context, interrupted bool) {
			if interrupted && idx < len(cmds) {
				cmds[idx].end(ctx, true)
			}
		},
		IsDone: func(context.Context) bool { return idx >= len(cmds) },
	}
}

// group runs commands side by side. It finishes when finished reports true over the per-command
// finished flags and interrupts whatever is still running.
func group(name string, cmds []*Command, finished func(done []bool) bool) *Command {
	done := make([]bool, len(cmds))
	return &Command{
		Name:         name,
		Requirements: unionRequirements(cmds),
		OnInit: func(ctx context.Context) {
			for i, cmd := range cmds {
				done[i] = false
				cmd.initialize(ctx)
			}
		},
		OnExecute: func(ctx context.Context) {
			for i, cmd := range cmds {
				if done[i] {
					continue
				}
				cmd.execute(ctx)
				if cmd.isFinished(ctx) {
					done[i] = true
					cmd.end(ctx, false)
				}
			}
		},
		OnEnd: func(ctx context.Context, _ bool) {
			for i, cmd := range cmds {
				if !done[i] {
					done[i] = true
					cmd.end(ctx, true)
				}
			}
		},
		IsDone: func(context.Context) bool { return finished(done) },
	}
}

// Parallel runs the commands together and finishes when all of them have.
func Parallel(name string, cmds ...*Command) *Command {
	return group(name, cmds, func(done []bool) bool {
		for _, d := range done {
			if !d {
				return false
			}
		}
		return true
	})
}

// Race runs the commands together and finishes when any of them does.
func Race(name string, cmds ...*Command) *Command {
	return group(name, cmds, func(done []bool) bool {
		for _, d := range done {
			if d {
				return true
			}
		}
		return len(done) == 0
	})
}

// Deadline runs the commands together and finishes when deadline does.
func Deadline(name string, deadline *Command, others ...*Command) *Command {
	return group(name, append([]*Command{deadline}, others...), func(done []bool) bool {
		return done[0]
	})
}

// WithTimeout ends cmd as interrupted once d has elapsed, logging a warning, and then finishes
// so that an enclosing sequence advances.
func WithTimeout(cmd *Command, clk clock.Clock, d time.Duration, logger logging.Logger) *Command {
	return limit(cmd, clk, func(ctx context.Context) {
		logger.Warnw("command timed out; advancing", "command", cmd.Name, "timeout", d)
		cmd.end(ctx, true)
	}, func(elapsed time.Duration) bool { return elapsed >= d })
}

// Timed runs cmd for strictly longer than d, then ends it normally.
func Timed(cmd *Command, clk clock.Clock, d time.Duration) *Command {
	return limit(cmd, clk, func(ctx context.Context) {
		cmd.end(ctx, false)
	}, func(elapsed time.Duration) bool { return elapsed > d })
}

func limit(
	cmd *Command,
	clk clock.Clock,
	expire func(ctx context.Context),
	expired func(elapsed time.Duration) bool,
) *Command {
	var (
		start     time.Time
		innerDone bool
		timedOut  bool
	)
	return &Command{
		Name:         cmd.Name,
		Requirements: cmd.Requirements,
		OnInit: func(ctx context.Context) {
			start = clk.Now()
			innerDone = false
			timedOut = false
			cmd.initialize(ctx)
		},
		OnExecute: func(ctx context.Context) {
			if innerDone || timedOut {
				return
			}
			if expired(clk.Since(start)) {
				timedOut = true
				expire(ctx)
				return
			}
			cmd.execute(ctx)
			if cmd.isFinished(ctx) {
				innerDone = true
				cmd.end(ctx, false)
			}
		},
		OnEnd: func(ctx context.Context, interrupted bool) {
			if !innerDone && !timedOut {
				cmd.end(ctx, interrupted)
			}
		},
		IsDone: func(context.Context) bool { return innerDone || timedOut },
	}
}
