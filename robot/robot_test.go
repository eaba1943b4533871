package robot

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/frc-reefscape/reefbot/components/base"
	basefake "github.com/frc-reefscape/reefbot/components/base/fake"
	"github.com/frc-reefscape/reefbot/components/motor"
	motorfake "github.com/frc-reefscape/reefbot/components/motor/fake"
	"github.com/frc-reefscape/reefbot/config"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/networktables"
	"github.com/frc-reefscape/reefbot/services/vision/hybrid"
)

type testRobot struct {
	*Robot
	clk      *clock.Mock
	nt       *networktables.Instance
	primary  networktables.Table
	drive    *basefake.Base
	roller   *motorfake.Motor
	climber  *motorfake.Motor
	settings networktables.Table
}

func newTestRobot(t *testing.T, cfgJSON string) *testRobot {
	t.Helper()
	cfg, err := config.FromReader(strings.NewReader(cfgJSON))
	test.That(t, err, test.ShouldBeNil)

	clk := clock.NewMock()
	nt := networktables.NewInstance()
	r, err := New(context.Background(), cfg, nt, logging.NewTestLogger(t), WithClock(clk))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, r.Close(context.Background()), test.ShouldBeNil)
	})

	drive, ok := r.resources[base.Named(cfg.Drive)].(*basefake.Base)
	test.That(t, ok, test.ShouldBeTrue)
	rollerMotor, ok := r.resources[motor.Named(cfg.Roller.Motor)].(*motorfake.Motor)
	test.That(t, ok, test.ShouldBeTrue)
	climberMotor, ok := r.resources[motor.Named(cfg.Climber.Motor)].(*motorfake.Motor)
	test.That(t, ok, test.ShouldBeTrue)
	return &testRobot{
		Robot:    r,
		clk:      clk,
		nt:       nt,
		primary:  nt.Table(cfg.Vision.Primary.Table),
		drive:    drive,
		roller:   rollerMotor,
		climber:  climberMotor,
		settings: nt.Table(cfg.TelemetryTable),
	}
}

func (tr *testRobot) seeTarget(offset float64) {
	tr.primary.(*networktables.MemTable).Put("tv", 1)
	tr.primary.(*networktables.MemTable).Put("tx", offset)
	tr.primary.(*networktables.MemTable).Put("tclass", "algae")
}

func (tr *testRobot) ticks(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		tr.Tick(ctx)
	}
}

func TestNewFromDefaults(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{}`)
	test.That(t, r.VisionMode(), test.ShouldEqual, hybrid.Fusion)
	test.That(t, r.Enabled(), test.ShouldBeFalse)
	test.That(t, r.Period(), test.ShouldEqual, 20*time.Millisecond)

	r.Tick(ctx)
	status := r.Status()
	test.That(t, status.Ticks, test.ShouldEqual, int64(1))
	test.That(t, status.HasTarget, test.ShouldBeFalse)
	test.That(t, status.Autonomous, test.ShouldEqual, AutoNone)
	test.That(t, r.settings.Bool("Robot/Enabled", true), test.ShouldBeFalse)
	test.That(t, r.settings.Bool("HybridVision/HasTarget", true), test.ShouldBeFalse)
	test.That(t, r.settings.Has("Arm/Position"), test.ShouldBeTrue)
	if runtime.GOOS == "linux" {
		test.That(t, r.settings.Number("System/RSS MB", 0), test.ShouldBeGreaterThan, 0)
	}
}

func TestNewMissingComponent(t *testing.T) {
	cfg := config.Config{}.Defaults()
	cfg.Components = cfg.Components[:1]
	_, err := New(context.Background(), cfg, networktables.NewInstance(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "arm")
}

func TestTracking(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{"vision": {"mode": "primary_only"}}`)
	r.seeTarget(10)

	// Commands only run while enabled.
	r.ScheduleTracking(ctx)
	r.Tick(ctx)
	test.That(t, r.drive.History(), test.ShouldBeEmpty)

	test.That(t, r.SetEnabled(ctx, true), test.ShouldBeNil)
	r.Tick(ctx)
	test.That(t, r.drive.Last().Rotation, test.ShouldAlmostEqual, -0.4)
	test.That(t, r.Status().Running, test.ShouldContain, "TrackTarget")

	r.seeTarget(0.5)
	r.Tick(ctx)
	test.That(t, r.drive.Last(), test.ShouldResemble, base.Stopped)
	test.That(t, r.Status().Running, test.ShouldNotContain, "TrackTarget")

	r.seeTarget(-20)
	r.ScheduleTracking(ctx)
	r.Tick(ctx)
	test.That(t, r.drive.Last().Rotation, test.ShouldAlmostEqual, 0.5)
	r.CancelTracking(ctx)
	test.That(t, r.drive.Last(), test.ShouldResemble, base.Stopped)
}

func TestDisableStopsEverything(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{}`)
	test.That(t, r.SetEnabled(ctx, true), test.ShouldBeNil)
	test.That(t, r.ScheduleManual(ctx, ManualClimberUp), test.ShouldBeNil)
	r.Tick(ctx)
	power, err := r.climber.Power(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, power, test.ShouldEqual, 0.5)

	test.That(t, r.SetEnabled(ctx, false), test.ShouldBeNil)
	power, err = r.climber.Power(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, power, test.ShouldEqual, 0.0)
	test.That(t, r.Status().Running, test.ShouldBeEmpty)
}

func TestManualCommands(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{}`)
	test.That(t, r.SetEnabled(ctx, true), test.ShouldBeNil)
	test.That(t, r.ScheduleManual(ctx, "dance"), test.ShouldNotBeNil)

	test.That(t, r.ScheduleManual(ctx, ManualClimberDown), test.ShouldBeNil)
	r.Tick(ctx)
	power, _ := r.climber.Power(ctx)
	test.That(t, power, test.ShouldEqual, -0.5)
	r.CancelManual(ctx, ManualClimberDown)
	power, _ = r.climber.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.0)

	test.That(t, r.ScheduleManual(ctx, ManualAlgaeIn), test.ShouldBeNil)
	r.Tick(ctx)
	power, _ = r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, -0.4)
	r.clk.Add(time.Second)
	r.Tick(ctx)
	power, _ = r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.0)
	test.That(t, r.Status().Running, test.ShouldNotContain, "AlgaeInTimed")
}

func TestHeldManualCommands(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{}`)
	test.That(t, r.ScheduleManual(ctx, ManualAlgaeOut), test.ShouldNotBeNil)
	test.That(t, r.SetEnabled(ctx, true), test.ShouldBeNil)

	test.That(t, r.ScheduleManual(ctx, ManualAlgaeOut), test.ShouldBeNil)
	power, _ := r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.4)
	r.clk.Add(time.Second)
	r.Tick(ctx)
	power, _ = r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.4)

	// The roller axis takes the roller over from the jog.
	r.SetOperatorRoller(-0.25)
	test.That(t, r.ScheduleManual(ctx, ManualRollerAxis), test.ShouldBeNil)
	test.That(t, r.Status().Running, test.ShouldNotContain, "AlgaeOut")
	r.Tick(ctx)
	power, _ = r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, -0.25)
	r.SetOperatorRoller(0.5)
	r.Tick(ctx)
	power, _ = r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.5)
	r.CancelManual(ctx, ManualRollerAxis)
	power, _ = r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.0)

	r.SetOperatorArm(0.3)
	test.That(t, r.ScheduleManual(ctx, ManualArmAxis), test.ShouldBeNil)
	r.Tick(ctx)
	test.That(t, r.Status().Running, test.ShouldContain, "RunArm")
	r.CancelManual(ctx, ManualArmAxis)
	test.That(t, r.Status().Running, test.ShouldNotContain, "RunArm")
}

func TestAutonomous(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{"autonomous": "score_coral"}`)
	test.That(t, r.AutonomousRoutines(), test.ShouldResemble,
		[]string{AutoCenterOnTarget, AutoNone, AutoPickupAlgae, AutoScoreCoral})
	test.That(t, r.SetAutonomous("win"), test.ShouldNotBeNil)

	name, err := r.StartAutonomous(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, AutoScoreCoral)
	test.That(t, r.Enabled(), test.ShouldBeTrue)
	test.That(t, r.Status().Running, test.ShouldContain, "ScoreCoral")

	// The arm starts at the safe position, so the roller spins on the second cycle.
	r.ticks(ctx, 3)
	power, _ := r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, -0.2)

	r.clk.Add(2 * time.Second)
	r.ticks(ctx, 2)
	test.That(t, r.Status().Running, test.ShouldNotContain, "ScoreCoral")
	power, _ = r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.0)

	test.That(t, r.SetAutonomous(AutoNone), test.ShouldBeNil)
	name, err = r.StartAutonomous(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, AutoNone)
	test.That(t, r.Status().Running, test.ShouldNotContain, "ScoreCoral")
}

func TestPickupSequence(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{"vision": {"mode": "primary_only"}}`)
	test.That(t, r.SetEnabled(ctx, true), test.ShouldBeNil)

	r.SchedulePickupSequence(ctx)
	r.Tick(ctx)
	test.That(t, r.Status().Running, test.ShouldContain, "AlgaePickupSequence")
	test.That(t, r.PickupResult().RunID, test.ShouldNotBeEmpty)
	test.That(t, r.PickupResult().Finished, test.ShouldBeFalse)

	r.CancelPickupSequence(ctx)
	test.That(t, r.Status().Running, test.ShouldNotContain, "AlgaePickupSequence")
	power, _ := r.roller.Power(ctx)
	test.That(t, power, test.ShouldEqual, 0.0)
}

func TestIntakeUsesDriverInput(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{"vision": {"mode": "primary_only"}}`)
	test.That(t, r.SetEnabled(ctx, true), test.ShouldBeNil)
	r.SetDriverForward(0.6)

	r.ScheduleIntake(ctx)
	r.Tick(ctx)
	test.That(t, r.Status().Running, test.ShouldContain, "AlgaeIntake")
	test.That(t, r.drive.Last().Forward, test.ShouldAlmostEqual, 0.6)

	r.CancelIntake(ctx)
	test.That(t, r.drive.Last(), test.ShouldResemble, base.Stopped)
}

func TestReconfigure(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, `{}`)

	next, err := config.FromReader(strings.NewReader(
		`{"vision": {"mode": "secondary_only", "target_label": "coral"}, "tracking": {"kp": 0.1}, "autonomous": "pickup_algae"}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Reconfigure(ctx, next), test.ShouldBeNil)
	test.That(t, r.VisionMode(), test.ShouldEqual, hybrid.SecondaryOnly)
	test.That(t, r.Status().Autonomous, test.ShouldEqual, AutoPickupAlgae)
	test.That(t, r.Config().Tracking.Kp, test.ShouldEqual, 0.1)

	bad := *next
	bad.Autonomous = "win"
	test.That(t, r.Reconfigure(ctx, &bad), test.ShouldNotBeNil)
	test.That(t, r.Status().Autonomous, test.ShouldEqual, AutoPickupAlgae)

	r.SetVisionMode(hybrid.PrimaryFallback)
	test.That(t, r.VisionMode(), test.ShouldEqual, hybrid.PrimaryFallback)
}

func TestRunLoop(t *testing.T) {
	r := newTestRobot(t, `{}`)
	r.Start()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		r.clk.Add(r.Period())
		test.That(tb, r.Status().Ticks, test.ShouldBeGreaterThan, 1)
	})
	r.Stop()
	ticks := r.Status().Ticks
	r.clk.Add(10 * r.Period())
	test.That(t, r.Status().Ticks, test.ShouldEqual, ticks)
}
