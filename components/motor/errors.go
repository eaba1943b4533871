package motor

import "github.com/pkg/errors"

// NewInvalidPowerError is returned for a non-finite power request.
func NewInvalidPowerError(motorName string, power float64) error {
	return errors.Errorf("motor with name %s cannot be set to power %v", motorName, power)
}
