package roller

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/frc-reefscape/reefbot/components/motor"
	"github.com/frc-reefscape/reefbot/components/motor/fake"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/telemetry"
)

func newTestRoller(t *testing.T) (*Roller, *fake.Motor, *telemetry.Recorder) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	m := fake.NewMotor(motor.Named("roller"), &fake.Config{}, clock.NewMock(), logger)
	rec := telemetry.NewRecorder()
	return New(m, Config{}, rec, logger), m, rec
}

func TestHasCurrentDropped(t *testing.T) {
	ctx := context.Background()
	r, m, _ := newTestRoller(t)

	m.QueueCurrents(20, 15, 14.9)
	for _, expected := range []bool{false, false, true} {
		dropped, err := r.HasCurrentDropped(ctx, DefaultBaselineCurrent, DefaultDropThreshold)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dropped, test.ShouldEqual, expected)
	}
}

func TestRunAndStop(t *testing.T) {
	ctx := context.Background()
	r, m, _ := newTestRoller(t)

	test.That(t, r.Run(ctx, DefaultAlgaeInSpeed), test.ShouldBeNil)
	speed, err := r.Speed(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, speed, test.ShouldEqual, DefaultAlgaeInSpeed)

	// The simulated motor draws current in proportion to power.
	amps, err := r.Current(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, amps, test.ShouldAlmostEqual, 8)

	test.That(t, r.Run(ctx, -3), test.ShouldBeNil)
	test.That(t, r.Stop(ctx), test.ShouldBeNil)
	test.That(t, m.PowerHistory(), test.ShouldResemble, []float64{DefaultAlgaeInSpeed, -1, 0})
}

func TestPeriodic(t *testing.T) {
	ctx := context.Background()
	r, m, rec := newTestRoller(t)
	m.SetCurrent(12)
	r.Periodic(ctx)

	v, ok := rec.Get("Roller/Motor Current (Amps)")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 12.0)
	v, _ = rec.Get("Roller/CALIBRATE: Would Trigger Pickup")
	test.That(t, v, test.ShouldEqual, true)
	v, _ = rec.Get("Roller/CALIBRATE: Baseline Current")
	test.That(t, v, test.ShouldEqual, DefaultBaselineCurrent)
}

func TestPeriodicReusesCycleReading(t *testing.T) {
	ctx := context.Background()
	r, m, rec := newTestRoller(t)
	m.QueueCurrents(20, 15, 14.9)

	dropped, err := r.HasCurrentDropped(ctx, DefaultBaselineCurrent, DefaultDropThreshold)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dropped, test.ShouldBeFalse)
	r.Periodic(ctx)
	v, _ := rec.Get("Roller/Motor Current (Amps)")
	test.That(t, v, test.ShouldEqual, 20.0)

	// Nothing read the current since, so telemetry takes the next sample.
	r.Periodic(ctx)
	v, _ = rec.Get("Roller/Motor Current (Amps)")
	test.That(t, v, test.ShouldEqual, 15.0)

	amps, err := r.Current(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, amps, test.ShouldEqual, 14.9)
}

func TestCalibrationFromReadings(t *testing.T) {
	ctx := context.Background()
	r, m, _ := newTestRoller(t)

	_, err := r.StopCalibration()
	test.That(t, err, test.ShouldNotBeNil)

	r.StartCalibration()
	m.QueueCurrents(18, 20, 22)
	for i := 0; i < 3; i++ {
		_, err := r.Current(ctx)
		test.That(t, err, test.ShouldBeNil)
	}
	result, err := r.StopCalibration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Samples, test.ShouldEqual, 3)
	test.That(t, result.Baseline, test.ShouldAlmostEqual, 20)
	test.That(t, result.Min, test.ShouldEqual, 18.0)
	test.That(t, result.Max, test.ShouldEqual, 22.0)
	test.That(t, result.SuggestedDropThreshold, test.ShouldAlmostEqual, 3*math.Sqrt(8.0/3))
}

func TestCalibrationSteadyCurrent(t *testing.T) {
	c := NewCalibrator()
	_, err := c.Result()
	test.That(t, err, test.ShouldNotBeNil)

	for i := 0; i < 25; i++ {
		c.Add(20)
	}
	c.Add(math.NaN())
	test.That(t, c.Len(), test.ShouldEqual, 25)
	result, err := c.Result()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.StdDev, test.ShouldEqual, 0.0)
	test.That(t, result.P5, test.ShouldEqual, 20.0)
	test.That(t, result.SuggestedDropThreshold, test.ShouldEqual, MinDropThreshold)
}

func TestReadSamples(t *testing.T) {
	c, err := ReadSamples(strings.NewReader("time,current\n0.00,19.5\n0.02,20.5\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Len(), test.ShouldEqual, 2)
	result, err := c.Result()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Baseline, test.ShouldAlmostEqual, 20)

	c, err = ReadSamples(strings.NewReader("1,18\n2,22\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Len(), test.ShouldEqual, 2)

	_, err = ReadSamples(strings.NewReader("current\nlots\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")
}

func TestConfig(t *testing.T) {
	cfg := Config{}.WithDefaults()
	deps, err := cfg.Validate("roller")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"roller"})
	test.That(t, cfg.DebounceCycles, test.ShouldEqual, 3)

	cfg.DropThreshold = -1
	_, err = cfg.Validate("roller")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "roller.drop_threshold_amps")
}
