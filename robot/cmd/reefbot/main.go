// Package main runs the robot's control loop.
package main

import (
	"go.viam.com/utils"

	// registers all components.
	_ "github.com/frc-reefscape/reefbot/components/register"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/robot/server"
)

var logger = logging.NewLogger("reefbot")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}
