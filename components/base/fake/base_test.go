package fake

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/frc-reefscape/reefbot/components/base"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/resource"
)

func TestFakeBaseRecords(t *testing.T) {
	ctx := context.Background()
	res, err := resource.Build(ctx, nil, resource.Config{Name: "swerve", API: base.API, Model: Model}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	b := res.(*Base)

	test.That(t, b.Last(), test.ShouldResemble, base.Stopped)
	test.That(t, b.Drive(ctx, base.ChassisSpeeds{Forward: 2, Rotation: -0.4}, true), test.ShouldBeNil)
	test.That(t, b.Last(), test.ShouldResemble, base.ChassisSpeeds{Forward: 1, Rotation: -0.4})
	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, b.CloseCount, test.ShouldEqual, 1)

	history := b.History()
	test.That(t, history, test.ShouldHaveLength, 2)
	test.That(t, history[0].FieldRelative, test.ShouldBeTrue)
	test.That(t, history[1].Speeds, test.ShouldResemble, base.Stopped)
	test.That(t, b.Name(), test.ShouldResemble, base.Named("swerve"))
}
