// Package main is the reefctl command itself.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/frc-reefscape/reefbot/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
