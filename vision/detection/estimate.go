package detection

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// A GamePieceEstimate is the estimated pose of a game piece relative to the robot, in meters.
// X is to the right, Y is forward and Z is up. Heading is in degrees.
type GamePieceEstimate struct {
	Detected  bool
	Position  r3.Vector
	Heading   float64
	Timestamp float64
}

// NoDetection is the sentinel estimate used when nothing is seen.
func NoDetection() GamePieceEstimate {
	return GamePieceEstimate{}
}

// Distance2D is the distance on the floor plane.
func (e GamePieceEstimate) Distance2D() float64 {
	return math.Hypot(e.Position.X, e.Position.Y)
}

// Distance3D is the straight line distance.
func (e GamePieceEstimate) Distance3D() float64 {
	return e.Position.Norm()
}

// BearingDeg is the angle to the piece measured from straight ahead, positive to the right.
func (e GamePieceEstimate) BearingDeg() float64 {
	return math.Atan2(e.Position.X, e.Position.Y) * 180 / math.Pi
}

func (e GamePieceEstimate) String() string {
	if !e.Detected {
		return "no game piece detected"
	}
	return fmt.Sprintf("game piece at (%.2f, %.2f, %.2f) m, %.2f m away, bearing %.1f deg",
		e.Position.X, e.Position.Y, e.Position.Z, e.Distance2D(), e.BearingDeg())
}
