package commands

import (
	"context"
	"math"
	"sync"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/control"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/utils"
	"github.com/frc-reefscape/reefbot/vision/detection"
)

// EstimateSource locates a game piece relative to the robot.
type EstimateSource interface {
	GamePieceEstimate() detection.GamePieceEstimate
}

// DriveToPieceConfig tunes DriveToGamePiece.
type DriveToPieceConfig struct {
	// TargetDistance in meters at which to stop short of the game piece.
	TargetDistance     float64           `json:"target_distance_m,omitempty"`
	DistanceTolerance  float64           `json:"distance_tolerance_m,omitempty"`
	AlignmentTolerance float64           `json:"alignment_tolerance_deg,omitempty"`
	MaxDriveSpeed      float64           `json:"max_drive_speed,omitempty"`
	MaxTurnSpeed       float64           `json:"max_turn_speed,omitempty"`
	DrivePID           control.PIDConfig `json:"drive_pid"`
	TurnPID            control.PIDConfig `json:"turn_pid"`
}

// WithDefaults returns a copy with every zero field set to its default.
func (cfg DriveToPieceConfig) WithDefaults() DriveToPieceConfig {
	if cfg.TargetDistance == 0 {
		cfg.TargetDistance = 0.3
	}
	if cfg.DistanceTolerance == 0 {
		cfg.DistanceTolerance = 0.1
	}
	if cfg.AlignmentTolerance == 0 {
		cfg.AlignmentTolerance = 2
	}
	if cfg.MaxDriveSpeed == 0 {
		cfg.MaxDriveSpeed = 0.5
	}
	if cfg.MaxTurnSpeed == 0 {
		cfg.MaxTurnSpeed = 0.5
	}
	if cfg.DrivePID.Kp == 0 && cfg.DrivePID.Ki == 0 && cfg.DrivePID.Kd == 0 {
		cfg.DrivePID = control.PIDConfig{Kp: 0.5, Kd: 0.05, Tolerance: cfg.DistanceTolerance}
	}
	if cfg.TurnPID.Kp == 0 && cfg.TurnPID.Ki == 0 && cfg.TurnPID.Kd == 0 {
		cfg.TurnPID = control.PIDConfig{
			Kp:         0.02,
			Kd:         0.001,
			Tolerance:  cfg.AlignmentTolerance,
			Continuous: true,
			MinInput:   -180,
			MaxInput:   180,
		}
	}
	return cfg
}

// Validate checks both controllers.
func (cfg DriveToPieceConfig) Validate(path string) error {
	if err := cfg.DrivePID.Validate(path + ".drive_pid"); err != nil {
		return err
	}
	return cfg.TurnPID.Validate(path + ".turn_pid")
}

// DriveToPiece drives up to a game piece using the camera's position estimate, turning to face it.
type DriveToPiece struct {
	source EstimateSource
	drive  base.Base
	logger logging.Logger
	errs   *errorThrottle

	mu    sync.Mutex
	cfg   DriveToPieceConfig
	drv   *control.PID
	turn  *control.PID
	speed base.ChassisSpeeds
}

// NewDriveToPiece returns the command state.
func NewDriveToPiece(source EstimateSource, drive base.Base, cfg DriveToPieceConfig, logger logging.Logger) (*DriveToPiece, error) {
	d := &DriveToPiece{source: source, drive: drive, logger: logger, errs: newErrorThrottle(logger)}
	if err := d.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Reconfigure rebuilds the controllers.
func (d *DriveToPiece) Reconfigure(cfg DriveToPieceConfig) error {
	cfg = cfg.WithDefaults()
	drv, err := control.NewPID(cfg.DrivePID)
	if err != nil {
		return err
	}
	turn, err := control.NewPID(cfg.TurnPID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg, d.drv, d.turn = cfg, drv, turn
	return nil
}

// LastSpeeds returns the last chassis command.
func (d *DriveToPiece) LastSpeeds() base.ChassisSpeeds {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

func (d *DriveToPiece) step(ctx context.Context) {
	estimate := d.source.GamePieceEstimate()
	speeds := base.Stopped
	if estimate.Detected {
		d.mu.Lock()
		// The drive error is positive while too far away, so it is negated into a forward command.
		forward := -d.drv.Calculate(estimate.Distance2D(), d.cfg.TargetDistance)
		turn := d.turn.Calculate(estimate.BearingDeg(), 0)
		speeds = base.ChassisSpeeds{
			Forward:  utils.ClampMagnitude(forward, d.cfg.MaxDriveSpeed),
			Rotation: utils.ClampMagnitude(turn, d.cfg.MaxTurnSpeed),
		}
		d.mu.Unlock()
	}
	d.mu.Lock()
	d.speed = speeds
	d.mu.Unlock()
	d.errs.check(RequireDrive, d.drive.Drive(ctx, speeds, false))
}

func (d *DriveToPiece) arrived() bool {
	estimate := d.source.GamePieceEstimate()
	if !estimate.Detected {
		return false
	}
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()
	return math.Abs(estimate.Distance2D()-cfg.TargetDistance) < cfg.DistanceTolerance &&
		math.Abs(estimate.BearingDeg()) < cfg.AlignmentTolerance
}

// Command returns a command driving until the robot is at the target distance and aligned.
func (d *DriveToPiece) Command() *command.Command {
	return &command.Command{
		Name:         "DriveToGamePiece",
		Requirements: []string{RequireDrive, RequireVision},
		OnInit: func(context.Context) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.drv.Reset()
			d.turn.Reset()
			d.speed = base.Stopped
		},
		OnExecute: d.step,
		OnEnd: func(ctx context.Context, _ bool) {
			d.errs.check(RequireDrive, d.drive.Stop(ctx))
		},
		IsDone: func(context.Context) bool { return d.arrived() },
	}
}
