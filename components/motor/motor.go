// Package motor defines the capability interface for a single motor controller output.
package motor

import (
	"context"

	"github.com/frc-reefscape/reefbot/resource"
)

// SubtypeName is a constant that identifies the component resource API string "motor".
const SubtypeName = "motor"

// API is a variable that identifies the component resource API.
var API = resource.APINamespaceComponent(SubtypeName)

// A Motor is one motor controller output with an integrated encoder and current sensing.
type Motor interface {
	resource.Resource

	// SetPower sets the percentage of power the motor should employ between -1 and 1. Values
	// outside the range are clamped.
	SetPower(ctx context.Context, powerPct float64) error

	// Power returns the last commanded power.
	Power(ctx context.Context) (float64, error)

	// Position reports the position of the motor in rotations relative to its zero position.
	Position(ctx context.Context) (float64, error)

	// Current reports the supply current drawn by the motor, in amps.
	Current(ctx context.Context) (float64, error)

	// ResetZeroPosition sets the current position plus offset to be the new zero position.
	ResetZeroPosition(ctx context.Context, offset float64) error

	// Stop sets the power to zero.
	Stop(ctx context.Context) error
}

// Named is a helper for getting the named Motor's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// FromDependencies is a helper for getting the named motor from a collection of dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Motor, error) {
	return resource.FromDependencies[Motor](deps, Named(name))
}
