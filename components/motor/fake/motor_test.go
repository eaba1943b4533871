package fake

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/frc-reefscape/reefbot/components/motor"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/resource"
	"github.com/frc-reefscape/reefbot/utils"
)

func TestMotorPositionIntegratesPower(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	m := NewMotor(motor.Named("arm"), &Config{MaxRPM: 60}, clk, logging.NewTestLogger(t))

	test.That(t, m.SetPower(ctx, 0.5), test.ShouldBeNil)
	clk.Add(2 * time.Second)
	pos, err := m.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldAlmostEqual, 1.0)

	test.That(t, m.SetPower(ctx, 3), test.ShouldBeNil)
	power, err := m.Power(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, power, test.ShouldEqual, 1.0)

	test.That(t, m.ResetZeroPosition(ctx, 0), test.ShouldBeNil)
	pos, err = m.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldAlmostEqual, 0.0)

	test.That(t, m.Stop(ctx), test.ShouldBeNil)
	test.That(t, m.PowerHistory(), test.ShouldResemble, []float64{0.5, 1, 0})
}

func TestMotorCurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMotor(motor.Named("roller"), &Config{FreeCurrentAmps: 20}, clock.NewMock(), logging.NewTestLogger(t))
	test.That(t, m.SetPower(ctx, -0.4), test.ShouldBeNil)

	amps, err := m.Current(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, amps, test.ShouldAlmostEqual, 8.0)

	m.SetCurrent(20)
	m.QueueCurrents(12, 13)
	for _, want := range []float64{12, 13, 20, 20} {
		amps, err = m.Current(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, amps, test.ShouldEqual, want)
	}
}

func TestMotorErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMotor(motor.Named("roller"), nil, clock.NewMock(), logging.NewTestLogger(t))
	m.SetError(errors.New("can bus fault"))
	test.That(t, m.SetPower(ctx, 0.2), test.ShouldBeError, errors.New("can bus fault"))
	test.That(t, m.Close(ctx), test.ShouldBeNil)
}

func TestMotorRegistration(t *testing.T) {
	conf := resource.Config{
		Name:       "climber",
		API:        motor.API,
		Model:      Model,
		Attributes: utils.AttributeMap{"max_rpm": 100, "invert": true},
	}
	res, err := resource.Build(context.Background(), nil, conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	m, ok := res.(*Motor)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.maxRPM, test.ShouldEqual, 100.0)
	test.That(t, m.invert, test.ShouldBeTrue)

	found, err := motor.FromDependencies(resource.Dependencies{m.Name(): m}, "climber")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found.Name(), test.ShouldResemble, motor.Named("climber"))

	bad := conf
	bad.Attributes = utils.AttributeMap{"max_rpm": -1}
	_, err = resource.Build(context.Background(), nil, bad, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
