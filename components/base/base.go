// Package base defines the drivetrain the robot commands steer through.
package base

import (
	"context"
	"fmt"

	"github.com/frc-reefscape/reefbot/resource"
	"github.com/frc-reefscape/reefbot/utils"
)

// SubtypeName is a constant that identifies the component resource API string "base".
const SubtypeName = "base"

// API is a variable that identifies the component resource API.
var API = resource.APINamespaceComponent(SubtypeName)

// ChassisSpeeds are normalized drive commands in [-1, 1] of the drivetrain's maximum speeds.
// Forward is positive ahead, Strafe positive to the left and Rotation positive counter-clockwise.
type ChassisSpeeds struct {
	Forward  float64
	Strafe   float64
	Rotation float64
}

// Stopped is the zero command.
var Stopped = ChassisSpeeds{}

// Clamped bounds every axis to [-1, 1].
func (s ChassisSpeeds) Clamped() ChassisSpeeds {
	return ChassisSpeeds{
		Forward:  utils.Clamp(s.Forward, -1, 1),
		Strafe:   utils.Clamp(s.Strafe, -1, 1),
		Rotation: utils.Clamp(s.Rotation, -1, 1),
	}
}

func (s ChassisSpeeds) String() string {
	return fmt.Sprintf("forward=%.3f strafe=%.3f rotation=%.3f", s.Forward, s.Strafe, s.Rotation)
}

// A Base is a holonomic drivetrain.
type Base interface {
	resource.Resource

	// Drive commands the chassis. When fieldRelative is set, Forward and Strafe are relative to
	// the field rather than the robot.
	Drive(ctx context.Context, speeds ChassisSpeeds, fieldRelative bool) error

	// Stop commands zero on every axis.
	Stop(ctx context.Context) error
}

// Named is a helper for getting the named Base's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// FromDependencies is a helper for getting the named base from a collection of dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Base, error) {
	return resource.FromDependencies[Base](deps, Named(name))
}
