package command

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/frc-reefscape/reefbot/logging"
)

// Scheduler runs commands. It is not safe for concurrent use; callers serialize access with the
// control tick.
type Scheduler struct {
	logger   logging.Logger
	active   []*Command
	defaults map[string]*Command
}

// NewScheduler returns an empty scheduler.
func NewScheduler(logger logging.Logger) *Scheduler {
	return &Scheduler{logger: logger, defaults: map[string]*Command{}}
}

// Schedule initializes and starts each command, interrupting any running command that shares a
// requirement. Commands already running are left alone.
func (s *Scheduler) Schedule(ctx context.Context, cmds ...*Command) {
	for _, cmd := range cmds {
		if cmd == nil || s.IsScheduled(cmd) {
			continue
		}
		for _, running := range s.active {
			if running.conflicts(cmd) {
				s.logger.CDebugw(ctx, "interrupting command", "command", running.Name, "by", cmd.Name)
				s.remove(running)
				running.end(ctx, true)
			}
		}
		s.logger.CDebugw(ctx, "scheduling command", "command", cmd.String())
		s.active = append(s.active, cmd)
		cmd.initialize(ctx)
	}
}

// Cancel interrupts the commands that are running.
func (s *Scheduler) Cancel(ctx context.Context, cmds ...*Command) {
	for _, cmd := range cmds {
		if cmd == nil || !s.IsScheduled(cmd) {
			continue
		}
		s.logger.CDebugw(ctx, "canceling command", "command", cmd.Name)
		s.remove(cmd)
		cmd.end(ctx, true)
	}
}

// CancelAll interrupts every running command.
func (s *Scheduler) CancelAll(ctx context.Context) {
	s.Cancel(ctx, append([]*Command(nil), s.active...)...)
}

// IsScheduled reports whether cmd is running.
func (s *Scheduler) IsScheduled(cmd *Command) bool {
	return lo.Contains(s.active, cmd)
}

// Requiring returns the running command holding requirement, if any.
func (s *Scheduler) Requiring(requirement string) (*Command, bool) {
	return lo.Find(s.active, func(c *Command) bool { return c.Requires(requirement) })
}

// Running returns the names of the running commands in the order they were scheduled.
func (s *Scheduler) Running() []string {
	return lo.Map(s.active, func(c *Command, _ int) string { return c.Name })
}

// SetDefaultCommand sets the command scheduled whenever nothing else holds requirement. The
// command must hold exactly that requirement. A nil command removes the default.
func (s *Scheduler) SetDefaultCommand(requirement string, cmd *Command) error {
	if cmd == nil {
		delete(s.defaults, requirement)
		return nil
	}
	if len(cmd.Requirements) != 1 || cmd.Requirements[0] != requirement {
		return errors.Errorf("default command %q for %q must require only %q", cmd.Name, requirement, requirement)
	}
	s.defaults[requirement] = cmd
	return nil
}

// DefaultCommand returns the default command for requirement.
func (s *Scheduler) DefaultCommand(requirement string) *Command {
	return s.defaults[requirement]
}

// Run executes one cycle: every running command executes once, finished ones end, then defaults
// are scheduled for idle requirements.
func (s *Scheduler) Run(ctx context.Context) {
	for _, cmd := range append([]*Command(nil), s.active...) {
		if !s.IsScheduled(cmd) {
			// Interrupted by a command scheduled earlier in this cycle.
			continue
		}
		cmd.execute(ctx)
		if cmd.isFinished(ctx) {
			s.logger.CDebugw(ctx, "command finished", "command", cmd.Name)
			s.remove(cmd)
			cmd.end(ctx, false)
		}
	}

	requirements := lo.Keys(s.defaults)
	slices.Sort(requirements)
	for _, requirement := range requirements {
		if _, busy := s.Requiring(requirement); !busy {
			s.Schedule(ctx, s.defaults[requirement])
		}
	}
}

func (s *Scheduler) remove(cmd *Command) {
	s.active = lo.Without(s.active, cmd)
}
