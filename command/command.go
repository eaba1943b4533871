// Package command implements cooperative, requirement-aware scheduling of robot commands.
//
// A Command is a set of callbacks run by the Scheduler once per control cycle: OnInit when
// scheduled, OnExecute every cycle, IsDone after each execute, and OnEnd once when the command
// finishes or is interrupted. Commands that share a requirement never run at the same time.
package command

import (
	"context"
	"strings"

	"github.com/samber/lo"
)

// A Command is a unit of robot behavior. Nil callbacks are skipped; a nil IsDone never finishes.
type Command struct {
	Name         string
	Requirements []string

	OnInit    func(ctx context.Context)
	OnExecute func(ctx context.Context)
	OnEnd     func(ctx context.Context, interrupted bool)
	IsDone    func(ctx context.Context) bool
}

func (c *Command) String() string {
	if len(c.Requirements) == 0 {
		return c.Name
	}
	return c.Name + "[" + strings.Join(c.Requirements, ",") + "]"
}

// Requires reports whether c holds the requirement.
func (c *Command) Requires(requirement string) bool {
	return lo.Contains(c.Requirements, requirement)
}

func (c *Command) conflicts(other *Command) bool {
	for _, req := range c.Requirements {
		if other.Requires(req) {
			return true
		}
	}
	return false
}

func (c *Command) initialize(ctx context.Context) {
	if c.OnInit != nil {
		c.OnInit(ctx)
	}
}

func (c *Command) execute(ctx context.Context) {
	if c.OnExecute != nil {
		c.OnExecute(ctx)
	}
}

func (c *Command) isFinished(ctx context.Context) bool {
	return c.IsDone != nil && c.IsDone(ctx)
}

func (c *Command) end(ctx context.Context, interrupted bool) {
	if c.OnEnd != nil {
		c.OnEnd(ctx, interrupted)
	}
}

func unionRequirements(cmds []*Command) []string {
	return lo.Uniq(lo.FlatMap(cmds, func(c *Command, _ int) []string {
		return c.Requirements
	}))
}
