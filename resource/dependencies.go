package resource

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/utils"
)

// Dependencies are the resources a resource depends on, keyed by name.
type Dependencies map[Name]Resource

// Lookup searches for a resource by name.
func (d Dependencies) Lookup(name Name) (Resource, error) {
	if res, ok := d[name]; ok {
		return res, nil
	}
	return nil, NewNotFoundError(name)
}

// FromDependencies returns a named resource of type T from the given dependencies.
func FromDependencies[T Resource](deps Dependencies, name Name) (T, error) {
	var zero T
	res, err := deps.Lookup(name)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, utils.NewUnimplementedInterfaceError(fmt.Sprintf("%T", (*T)(nil)), res)
	}
	return typed, nil
}

// NewNotFoundError is used when a resource is not found.
func NewNotFoundError(name Name) error {
	return errors.Errorf("resource %q not found", name)
}
