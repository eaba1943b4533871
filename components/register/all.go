// Package register registers all components
package register

import (
	// register components.
	_ "github.com/frc-reefscape/reefbot/components/base/fake"
	_ "github.com/frc-reefscape/reefbot/components/motor/fake"
)
