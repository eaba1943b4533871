package commands

import (
	"context"
	"sync"

	"github.com/frc-reefscape/reefbot/command"
	"github.com/frc-reefscape/reefbot/components/arm"
	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/components/limelight"
	"github.com/frc-reefscape/reefbot/components/roller"
	"github.com/frc-reefscape/reefbot/control"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/utils"
)

// IntakeConfig tunes the driver-assisted algae intake.
type IntakeConfig struct {
	// Deadband applied to the driver's forward input.
	Deadband float64 `json:"deadband,omitempty"`
	// ForwardScale scales the driver's forward input into a chassis command.
	ForwardScale float64 `json:"forward_scale,omitempty"`
	// MaxCorrection bounds the vision strafe and rotation corrections.
	MaxCorrection float64           `json:"max_correction,omitempty"`
	StrafePID     control.PIDConfig `json:"strafe_pid"`
	RotationPID   control.PIDConfig `json:"rotation_pid"`
}

// WithDefaults returns a copy with every zero field set to its default.
func (cfg IntakeConfig) WithDefaults() IntakeConfig {
	if cfg.Deadband == 0 {
		cfg.Deadband = 0.1
	}
	if cfg.ForwardScale == 0 {
		cfg.ForwardScale = 1
	}
	if cfg.MaxCorrection == 0 {
		cfg.MaxCorrection = 0.5
	}
	if cfg.StrafePID.Kp == 0 && cfg.StrafePID.Ki == 0 && cfg.StrafePID.Kd == 0 {
		cfg.StrafePID = control.PIDConfig{Kp: 0.02, Tolerance: DefaultTrackDeadband}
	}
	if cfg.RotationPID.Kp == 0 && cfg.RotationPID.Ki == 0 && cfg.RotationPID.Kd == 0 {
		cfg.RotationPID = control.PIDConfig{Kp: DefaultTrackKp, Tolerance: DefaultTrackDeadband}
	}
	return cfg
}

// Validate checks both controllers.
func (cfg IntakeConfig) Validate(path string) error {
	if err := cfg.StrafePID.Validate(path + ".strafe_pid"); err != nil {
		return err
	}
	return cfg.RotationPID.Validate(path + ".rotation_pid")
}

// IntakeState is where the intake is.
type IntakeState int

// Intake states.
const (
	Intaking IntakeState = iota
	Stowing
)

func (s IntakeState) String() string {
	if s == Stowing {
		return "stowing"
	}
	return "intaking"
}

// Intake lets the driver drive forward onto an algae while vision corrects sideways and the arm
// and roller take it in. A sustained current spike means the algae is held and the arm stows.
type Intake struct {
	source  TargetSource
	lights  Illuminator
	drive   base.Base
	arm     *arm.Arm
	roller  *roller.Roller
	forward func() float64
	logger  logging.Logger
	errs    *errorThrottle

	mu       sync.Mutex
	cfg      IntakeConfig
	state    IntakeState
	strafe   *control.PID
	rotation *control.PID
	spike    *control.SpikeDetector
}

// NewIntake returns the intake. forward supplies the driver's forward input in [-1, 1].
func NewIntake(
	source TargetSource,
	lights Illuminator,
	drive base.Base,
	a *arm.Arm,
	r *roller.Roller,
	forward func() float64,
	cfg IntakeConfig,
	logger logging.Logger,
) (*Intake, error) {
	in := &Intake{
		source:  source,
		lights:  lights,
		drive:   drive,
		arm:     a,
		roller:  r,
		forward: forward,
		logger:  logger,
		errs:    newErrorThrottle(logger),
	}
	if err := in.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return in, nil
}

// Reconfigure rebuilds the controllers.
func (in *Intake) Reconfigure(cfg IntakeConfig) error {
	cfg = cfg.WithDefaults()
	strafe, err := control.NewPID(cfg.StrafePID)
	if err != nil {
		return err
	}
	rotation, err := control.NewPID(cfg.RotationPID)
	if err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.cfg = cfg
	in.strafe = strafe
	in.rotation = rotation
	return nil
}

// State returns the current state.
func (in *Intake) State() IntakeState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

func (in *Intake) initialize(context.Context) {
	rcfg := in.roller.Config()
	in.mu.Lock()
	in.state = Intaking
	in.strafe.Reset()
	in.rotation.Reset()
	in.spike = control.NewSpikeDetector(rcfg.SpikeThreshold, rcfg.DebounceCycles)
	in.mu.Unlock()
	if in.lights != nil {
		in.lights.SetPipeline(limelight.AlgaePipeline)
		in.lights.SetLEDMode(limelight.LEDOn)
	}
}

func (in *Intake) execute(ctx context.Context) {
	if in.State() == Stowing {
		in.stow(ctx)
		return
	}

	in.mu.Lock()
	cfg := in.cfg
	speeds := base.ChassisSpeeds{Forward: utils.ApplyDeadband(in.forward(), cfg.Deadband) * cfg.ForwardScale}
	if in.source.HasTarget() {
		tx := in.source.HorizontalOffset()
		// Both outputs are negative for a target to the right: strafe right and turn clockwise.
		speeds.Strafe = utils.ClampMagnitude(in.strafe.Calculate(tx, 0), cfg.MaxCorrection)
		speeds.Rotation = utils.ClampMagnitude(in.rotation.Calculate(tx, 0), cfg.MaxCorrection)
	}
	in.mu.Unlock()

	acfg := in.arm.Config()
	in.errs.check(RequireDrive, in.drive.Drive(ctx, speeds, true))
	_, err := in.arm.DriveToward(ctx, acfg.AlgaeIntakePosition)
	in.errs.check(RequireArm, err)
	in.errs.check(RequireRoller, in.roller.Run(ctx, in.roller.Config().AlgaeInSpeed))

	amps, err := in.roller.Current(ctx)
	if err != nil {
		in.errs.check(RequireRoller, err)
		return
	}
	in.mu.Lock()
	held := in.spike.Update(amps)
	if held {
		in.state = Stowing
	}
	in.mu.Unlock()
	if held {
		in.logger.Infow("algae acquired, stowing", "current", amps)
	}
}

func (in *Intake) stow(ctx context.Context) {
	in.errs.check(RequireDrive, in.drive.Stop(ctx))
	_, err := in.arm.DriveToward(ctx, in.arm.Config().StowPosition)
	in.errs.check(RequireArm, err)
	in.errs.check(RequireRoller, in.roller.Stop(ctx))
}

func (in *Intake) isDone(ctx context.Context) bool {
	if in.State() != Stowing {
		return false
	}
	acfg := in.arm.Config()
	at, err := in.arm.IsAtPosition(ctx, acfg.StowPosition, acfg.Tolerance)
	return err == nil && at
}

func (in *Intake) end(ctx context.Context, interrupted bool) {
	in.errs.check(RequireDrive, in.drive.Stop(ctx))
	in.errs.check(RequireArm, in.arm.Stop(ctx))
	in.errs.check(RequireRoller, in.roller.Stop(ctx))
	if in.lights != nil {
		in.lights.SetLEDMode(limelight.LEDPipelineDefault)
	}
	if interrupted {
		in.logger.Debugw("algae intake interrupted", "state", in.State())
	}
}

// Command returns a command running the intake until the arm is stowed with the algae.
func (in *Intake) Command() *command.Command {
	return &command.Command{
		Name:         "AlgaeIntake",
		Requirements: []string{RequireDrive, RequireArm, RequireRoller},
		OnInit:       in.initialize,
		OnExecute:    in.execute,
		OnEnd:        in.end,
		IsDone:       in.isDone,
	}
}
