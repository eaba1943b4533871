package limelight

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/networktables"
	"github.com/frc-reefscape/reefbot/telemetry"
)

func newTestCamera(t *testing.T) (*Camera, *networktables.MemTable, *clock.Mock, *telemetry.Recorder) {
	t.Helper()
	table := networktables.NewMemTable(DefaultTable)
	clk := clock.NewMock()
	rec := telemetry.NewRecorder()
	return New(table, Config{}, clk, rec, logging.NewTestLogger(t)), table, clk, rec
}

func publishTarget(table networktables.Table, tx, ty, ta float64) {
	table.Put(KeyHasTarget, 1)
	table.Put(KeyHorizontal, tx)
	table.Put(KeyVertical, ty)
	table.Put(KeyArea, ta)
}

func TestMissingFeedIsSafe(t *testing.T) {
	cam, table, _, _ := newTestCamera(t)
	cam.Update()
	test.That(t, cam.HasTarget(), test.ShouldBeFalse)
	test.That(t, cam.HorizontalOffset(), test.ShouldEqual, 0.0)
	test.That(t, cam.VerticalOffset(), test.ShouldEqual, 0.0)
	test.That(t, cam.TargetArea(), test.ShouldEqual, 0.0)
	test.That(t, cam.EstimatedDistance(), test.ShouldEqual, 0.0)
	test.That(t, cam.GamePieceEstimate().Detected, test.ShouldBeFalse)
	_, ok := cam.PrimaryDetection()
	test.That(t, ok, test.ShouldBeFalse)

	// Offsets published without tv are ignored.
	table.Put(KeyHorizontal, 12.0)
	cam.Update()
	test.That(t, cam.HorizontalOffset(), test.ShouldEqual, 0.0)

	// A nonsense value reads as no target.
	publishTarget(table, math.NaN(), 0, 5)
	cam.Update()
	test.That(t, cam.HasTarget(), test.ShouldBeFalse)
}

func TestTargetReadings(t *testing.T) {
	cam, table, _, _ := newTestCamera(t)
	publishTarget(table, 10, -4, 140)
	cam.Update()

	test.That(t, cam.HasTarget(), test.ShouldBeTrue)
	test.That(t, cam.HorizontalOffset(), test.ShouldEqual, 10.0)
	test.That(t, cam.VerticalOffset(), test.ShouldEqual, -4.0)
	test.That(t, cam.TargetArea(), test.ShouldEqual, 100.0)
	test.That(t, cam.IsAligned(1), test.ShouldBeFalse)
	test.That(t, cam.IsAligned(11), test.ShouldBeTrue)
	test.That(t, cam.Label(), test.ShouldEqual, DefaultLabel)
	test.That(t, cam.EstimatedDistance(), test.ShouldAlmostEqual, 4.8)
}

func TestPrimaryDetection(t *testing.T) {
	cam, table, _, _ := newTestCamera(t)
	publishTarget(table, 0, 0, 4)
	table.Put(KeyClass, "coral")
	cam.Update()

	det, ok := cam.PrimaryDetection()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, det.Label, test.ShouldEqual, "coral")
	test.That(t, det.Confidence, test.ShouldEqual, 1.0)
	test.That(t, det.X, test.ShouldAlmostEqual, 0.5)
	test.That(t, det.Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, det.Width, test.ShouldAlmostEqual, 0.2)
	test.That(t, cam.DetectionsByLabel("CORAL"), test.ShouldHaveLength, 1)
	test.That(t, cam.DetectionsByLabel("algae"), test.ShouldBeEmpty)

	publishTarget(table, 40, 0, 4)
	cam.Update()
	det, ok = cam.PrimaryDetection()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, det.X, test.ShouldEqual, 1.0)
}

func TestGamePieceEstimate(t *testing.T) {
	cam, table, clk, _ := newTestCamera(t)
	publishTarget(table, 0, 0, 25)
	clk.Add(time.Second)
	cam.Update()

	est := cam.GamePieceEstimate()
	test.That(t, est.Detected, test.ShouldBeTrue)
	test.That(t, est.Position.X, test.ShouldAlmostEqual, 0.0)
	test.That(t, est.Position.Y, test.ShouldAlmostEqual, 4.0)
	test.That(t, est.Position.Z, test.ShouldAlmostEqual, 0.4)
	test.That(t, est.Timestamp, test.ShouldAlmostEqual, 1.0)

	publishTarget(table, 5, 0, 0)
	cam.Update()
	test.That(t, cam.GamePieceEstimate().Distance2D(), test.ShouldAlmostEqual, 5.0)
	test.That(t, cam.GamePieceEstimate().Heading, test.ShouldEqual, 5.0)

	table.Put(KeyCamTran, []float64{0.3, 1.2, 0.1, 0, 12, 0})
	cam.Update()
	est = cam.GamePieceEstimate()
	test.That(t, est.Position.X, test.ShouldEqual, 0.3)
	test.That(t, est.Position.Y, test.ShouldEqual, 1.2)
	test.That(t, est.Heading, test.ShouldEqual, 12.0)

	clk.Add(250 * time.Millisecond)
	test.That(t, cam.TimeSinceLastUpdate(), test.ShouldEqual, 250*time.Millisecond)
}

func TestPipelineAndLEDs(t *testing.T) {
	cam, table, _, _ := newTestCamera(t)
	test.That(t, table.Number(KeyLEDMode, -1), test.ShouldEqual, 0.0)

	cam.SetPipeline(CoralPipeline)
	test.That(t, cam.Pipeline(), test.ShouldEqual, CoralPipeline)
	test.That(t, cam.ActivePipeline(), test.ShouldEqual, CoralPipeline)
	table.Put(KeyActivePipeline, 0)
	test.That(t, cam.ActivePipeline(), test.ShouldEqual, 0)
	test.That(t, cam.Pipeline(), test.ShouldEqual, CoralPipeline)

	cam.SetLEDs(true)
	test.That(t, table.Number(KeyLEDMode, -1), test.ShouldEqual, 3.0)
	cam.SetLEDs(false)
	test.That(t, table.Number(KeyLEDMode, -1), test.ShouldEqual, 1.0)
	cam.SetLEDMode(LEDBlink)
	test.That(t, cam.LEDMode(), test.ShouldEqual, LEDBlink)
	test.That(t, cam.LEDMode().String(), test.ShouldEqual, "blink")

	cam.SetCamMode(CamDriver)
	test.That(t, table.Number(KeyCamMode, -1), test.ShouldEqual, 1.0)
	test.That(t, cam.CamMode(), test.ShouldEqual, CamDriver)
}

func TestPeriodicTelemetry(t *testing.T) {
	cam, table, _, rec := newTestCamera(t)
	cam.Update()
	cam.Periodic()
	status, _ := rec.Get("Limelight/Status")
	test.That(t, status, test.ShouldEqual, "No Target")

	publishTarget(table, 3, 1, 9)
	cam.Update()
	cam.Periodic()
	status, _ = rec.Get("Limelight/Status")
	test.That(t, status, test.ShouldEqual, "Target Acquired")
	tx, _ := rec.Get("Limelight/TX")
	test.That(t, tx, test.ShouldEqual, 3.0)
}
