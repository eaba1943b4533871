package control

import (
	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/utils"
)

// Proportional is a pure proportional controller with a minimum-magnitude floor, to overcome
// static friction, and a maximum-magnitude clamp.
type Proportional struct {
	Kp         float64
	MinCommand float64
	MaxCommand float64
}

// Validate checks the gains and limits.
func (p Proportional) Validate(path string) error {
	if p.Kp <= 0 {
		return errors.Errorf("%s: kp must be positive", path)
	}
	if p.MinCommand < 0 || p.MaxCommand <= 0 || p.MinCommand > p.MaxCommand {
		return errors.Errorf("%s: need 0 <= min_command <= max_command and max_command > 0", path)
	}
	return nil
}

// Calculate returns the raw proportional output Kp*(setpoint-measurement).
func (p Proportional) Calculate(measurement, setpoint float64) float64 {
	return p.Kp * (setpoint - measurement)
}

// Command applies the floor and clamp to a raw output. Zero stays zero.
func (p Proportional) Command(raw float64) float64 {
	return utils.ClampMagnitude(utils.CopySignFloor(raw, p.MinCommand), p.MaxCommand)
}
