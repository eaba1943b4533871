// Package cli contains the tuning and config tooling for the robot.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/components/motor"
	// registers all components.
	_ "github.com/frc-reefscape/reefbot/components/register"
	"github.com/frc-reefscape/reefbot/components/roller"
	"github.com/frc-reefscape/reefbot/config"
	"github.com/frc-reefscape/reefbot/resource"
)

const (
	// Flags.
	schemaFlagModels   = "models"
	calibrateFlagJSON  = "json"
	calibrateFlagApply = "apply"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "reefctl",
		Usage:           "check robot configs and tune the roller",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "print the JSON schema of the robot config",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  schemaFlagModels,
						Usage: "print the attribute schema of every component model instead",
					},
				},
				Action: SchemaAction,
			},
			{
				Name:      "validate",
				Usage:     "read and validate a robot config",
				ArgsUsage: "<config.json>",
				Action:    ValidateAction,
			},
			{
				Name:      "calibrate",
				Usage:     "compute the roller's baseline current and drop threshold from a recorded current log",
				ArgsUsage: "<samples.csv>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  calibrateFlagJSON,
						Usage: "print the calibration as JSON",
					},
					&cli.StringFlag{
						Name:  calibrateFlagApply,
						Usage: "write the result into the roller section of config `FILE`",
					},
				},
				Action: CalibrateAction,
			},
		},
	}
}

// SchemaAction prints the config schema.
func SchemaAction(c *cli.Context) error {
	var schema interface{} = config.Schema()
	if c.Bool(schemaFlagModels) {
		schema = config.ModelSchemas()
	}
	return printJSON(c.App.Writer, schema)
}

// ValidateAction reads a config and summarizes it.
func ValidateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("validate takes exactly one config file")
	}
	cfg, err := config.Read(c.Args().First())
	if err != nil {
		return err
	}
	successf(c.App.Writer, "%s is valid", cfg.ConfigFilePath)
	printf(c.App.Writer, "\tperiod: %s", cfg.Period())
	printf(c.App.Writer, "\tvision mode: %s (label %q)", cfg.Vision.Mode, cfg.Vision.TargetLabel)
	printf(c.App.Writer, "\tautonomous: %s", cfg.Autonomous)
	printf(c.App.Writer, "%s", componentTable(cfg))
	return nil
}

// componentTable renders one row per configured component and what the robot uses it for.
func componentTable(cfg *config.Config) string {
	roles := map[resource.Name]string{
		base.Named(cfg.Drive):          "drive base",
		motor.Named(cfg.Arm.Motor):     "arm motor",
		motor.Named(cfg.Roller.Motor):  "roller motor",
		motor.Named(cfg.Climber.Motor): "climber motor",
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Model", "Depends On", "Used As"})
	for i, comp := range cfg.Components {
		t.AppendRow(table.Row{
			i + 1,
			comp.ResourceName().String(),
			comp.Model,
			strings.Join(comp.Dependencies(), ", "),
			roles[comp.ResourceName()],
		})
	}
	return t.Render()
}

// CalibrateAction computes the roller calibration from a CSV of current samples.
func CalibrateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("calibrate takes exactly one samples file")
	}
	//nolint:gosec
	f, err := os.Open(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "cannot open samples")
	}
	defer func() {
		_ = f.Close()
	}()
	calibrator, err := roller.ReadSamples(f)
	if err != nil {
		return err
	}
	result, err := calibrator.Result()
	if err != nil {
		return err
	}

	if path := c.String(calibrateFlagApply); path != "" {
		if err := applyCalibration(path, result); err != nil {
			return err
		}
	}
	if c.Bool(calibrateFlagJSON) {
		return printJSON(c.App.Writer, result)
	}
	printf(c.App.Writer, "samples: %d", result.Samples)
	printf(c.App.Writer, "baseline current: %.2f A (stddev %.2f, min %.2f, max %.2f, p5 %.2f)",
		result.Baseline, result.StdDev, result.Min, result.Max, result.P5)
	printf(c.App.Writer, "suggested drop threshold: %.2f A", result.SuggestedDropThreshold)
	return nil
}

// applyCalibration rewrites the roller section of a config file and checks the result still
// validates before replacing the file.
func applyCalibration(path string, result roller.Calibration) error {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "cannot read config")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "cannot parse config")
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	section, _ := raw["roller"].(map[string]interface{})
	if section == nil {
		section = map[string]interface{}{}
	}
	section["baseline_current_amps"] = result.Baseline
	section["drop_threshold_amps"] = result.SuggestedDropThreshold
	raw["roller"] = section

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	if _, err := config.Read(tmp); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "calibrated config does not validate")
	}
	return os.Rename(tmp, path)
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// successf prints a message, in green when stdout is a terminal.
func successf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.FgGreen).Fprintf(w, format+"\n", a...)
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
