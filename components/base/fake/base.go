// Package fake implements a fake base that records what it was commanded.
package fake

import (
	"context"
	"sync"

	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/resource"
)

// Model is the model name of the fake base.
const Model = resource.Model("fake")

func init() {
	resource.RegisterComponent(
		base.API,
		Model,
		resource.Registration[base.Base, resource.NoNativeConfig]{Constructor: NewBase},
	)
}

// Command is one recorded call to Drive.
type Command struct {
	Speeds        base.ChassisSpeeds
	FieldRelative bool
}

// Base is a fake base that remembers every command.
type Base struct {
	resource.Named

	mu         sync.Mutex
	history    []Command
	CloseCount int
}

// NewBase instantiates a new base of the fake model type.
func NewBase(
	ctx context.Context,
	_ resource.Dependencies,
	conf resource.Config,
	_ logging.Logger,
) (base.Base, error) {
	return &Base{Named: conf.ResourceName().AsNamed()}, nil
}

// NewRecorder returns a fake base with the given name, for tests.
func NewRecorder(name string) *Base {
	return &Base{Named: base.Named(name).AsNamed()}
}

// Drive records the command.
func (b *Base) Drive(ctx context.Context, speeds base.ChassisSpeeds, fieldRelative bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, Command{Speeds: speeds.Clamped(), FieldRelative: fieldRelative})
	return nil
}

// Stop records a zero command.
func (b *Base) Stop(ctx context.Context) error {
	return b.Drive(ctx, base.Stopped, false)
}

// Last returns the most recent command, or zero if there was none.
func (b *Base) Last() base.ChassisSpeeds {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == 0 {
		return base.Stopped
	}
	return b.history[len(b.history)-1].Speeds
}

// History returns every command so far.
func (b *Base) History() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.history...)
}

// Close stops the base.
func (b *Base) Close(ctx context.Context) error {
	b.mu.Lock()
	b.CloseCount++
	b.mu.Unlock()
	return b.Stop(ctx)
}
