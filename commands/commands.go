// Package commands contains the robot's commands, built on the command scheduler.
package commands

import (
	"sync"

	"github.com/frc-reefscape/reefbot/components/limelight"
	"github.com/frc-reefscape/reefbot/logging"
)

// Requirements held by the robot's commands. Commands sharing one never run together.
const (
	RequireDrive   = "drive"
	RequireVision  = "vision"
	RequireArm     = "arm"
	RequireRoller  = "roller"
	RequireClimber = "climber"
)

// TargetSource reports a target as an angle from the image center.
type TargetSource interface {
	HasTarget() bool
	HorizontalOffset() float64
}

// Illuminator controls the primary camera's LEDs and pipeline.
type Illuminator interface {
	SetLEDMode(mode limelight.LEDMode)
	SetPipeline(index int)
}

// errorThrottle logs the first failure of each actuator and then every logEvery-th, so a
// persistently failing motor does not flood the log from the control loop.
type errorThrottle struct {
	logger logging.Logger

	mu     sync.Mutex
	counts map[string]int
}

const logEvery = 50

func newErrorThrottle(logger logging.Logger) *errorThrottle {
	return &errorThrottle{logger: logger, counts: map[string]int{}}
}

func (e *errorThrottle) check(actuator string, err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.counts[actuator]++
	n := e.counts[actuator]
	e.mu.Unlock()
	if n == 1 || n%logEvery == 0 {
		e.logger.Warnw("actuator command failed", "actuator", actuator, "error", err, "occurrences", n)
	}
}
