package hybrid

import (
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/frc-reefscape/reefbot/components/coral"
	"github.com/frc-reefscape/reefbot/components/limelight"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/networktables"
	"github.com/frc-reefscape/reefbot/telemetry"
)

type harness struct {
	engine    *Engine
	camera    *limelight.Camera
	cop       *coral.Coprocessor
	primary   *networktables.MemTable
	secondary *networktables.MemTable
	rec       *telemetry.Recorder
	stamp     float64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logging.NewTestLogger(t)
	h := &harness{
		primary:   networktables.NewMemTable(limelight.DefaultTable),
		secondary: networktables.NewMemTable(coral.DefaultTable),
		rec:       telemetry.NewRecorder(),
	}
	h.camera = limelight.New(h.primary, limelight.Config{}, clock.NewMock(), nil, logger)
	h.cop = coral.New(h.secondary, coral.Config{}, nil, logger)
	h.engine = New(h.camera, h.cop, h.rec, logger)
	return h
}

func (h *harness) primaryTarget(tx, ty, ta float64) {
	h.primary.Put(limelight.KeyHasTarget, 1)
	h.primary.Put(limelight.KeyHorizontal, tx)
	h.primary.Put(limelight.KeyVertical, ty)
	h.primary.Put(limelight.KeyArea, ta)
	h.camera.Update()
}

func (h *harness) noPrimaryTarget() {
	h.primary.Put(limelight.KeyHasTarget, 0)
	h.camera.Update()
}

// secondaryDetection publishes a single detection, or an empty batch when label is empty.
func (h *harness) secondaryDetection(label string, conf, x, y, size float64) {
	h.stamp++
	h.secondary.Put(coral.KeyConnected, true)
	h.secondary.Put(coral.KeyTimestamp, h.stamp)
	if label == "" {
		h.secondary.Put(coral.KeyNumDetections, 0)
		for _, key := range []string{
			coral.KeyLabels, coral.KeyConfidences, coral.KeyXPositions,
			coral.KeyYPositions, coral.KeyWidths, coral.KeyHeights,
		} {
			h.secondary.Delete(key)
		}
	} else {
		h.secondary.Put(coral.KeyNumDetections, 1)
		h.secondary.Put(coral.KeyLabels, []string{label})
		h.secondary.Put(coral.KeyConfidences, []float64{conf})
		h.secondary.Put(coral.KeyXPositions, []float64{x})
		h.secondary.Put(coral.KeyYPositions, []float64{y})
		h.secondary.Put(coral.KeyWidths, []float64{size})
		h.secondary.Put(coral.KeyHeights, []float64{size})
	}
	h.cop.Update()
}

func TestNormalizedToAngle(t *testing.T) {
	test.That(t, NormalizedToAngle(0.5, HorizontalFOV), test.ShouldEqual, 0.0)
	test.That(t, NormalizedToAngle(0, HorizontalFOV), test.ShouldAlmostEqual, -29.8)
	test.That(t, NormalizedToAngle(1, HorizontalFOV), test.ShouldAlmostEqual, 29.8)

	previous := NormalizedToAngle(0, HorizontalFOV)
	for x := 0.05; x <= 1.0; x += 0.05 {
		angle := NormalizedToAngle(x, HorizontalFOV)
		test.That(t, angle, test.ShouldBeGreaterThan, previous)
		previous = angle
	}
}

func TestParseMode(t *testing.T) {
	for mode, name := range modeNames {
		parsed, err := ParseMode(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, mode)
	}
	parsed, err := ParseMode(" Primary_Fallback ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, PrimaryFallback)

	parsed, err = ParseMode("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, Fusion)

	_, err = ParseMode("both")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "both")

	var m Mode
	test.That(t, m.UnmarshalText([]byte("secondary_only")), test.ShouldBeNil)
	test.That(t, m, test.ShouldEqual, SecondaryOnly)
	text, err := m.MarshalText()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(text), test.ShouldEqual, "secondary_only")
	test.That(t, Mode(42).String(), test.ShouldEqual, "unknown")
}

func TestDefaults(t *testing.T) {
	h := newHarness(t)
	test.That(t, h.engine.Mode(), test.ShouldEqual, Fusion)
	test.That(t, h.engine.TargetLabel(), test.ShouldEqual, DefaultTargetLabel)
	test.That(t, h.engine.HasTarget(), test.ShouldBeFalse)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldEqual, 0.0)
	test.That(t, h.engine.VerticalOffset(), test.ShouldEqual, 0.0)
	test.That(t, h.engine.TargetArea(), test.ShouldEqual, 0.0)
	test.That(t, h.engine.AllDetections(), test.ShouldBeEmpty)
	_, ok := h.engine.BestDetection("algae")
	test.That(t, ok, test.ShouldBeFalse)

	h.engine.SetTargetLabel("")
	test.That(t, h.engine.TargetLabel(), test.ShouldEqual, DefaultTargetLabel)
}

// Fusion reports a target only when both sources see one.
func TestFusionHasTargetRequiresBothSources(t *testing.T) {
	for _, tc := range []struct {
		primary, secondary bool
		expected           bool
	}{
		{false, false, false},
		{true, false, false},
		{false, true, false},
		{true, true, true},
	} {
		h := newHarness(t)
		if tc.primary {
			h.primaryTarget(5, 0, 10)
		} else {
			h.noPrimaryTarget()
		}
		if tc.secondary {
			h.secondaryDetection("algae", 0.9, 0.6, 0.5, 0.2)
		} else {
			h.secondaryDetection("", 0, 0, 0, 0)
		}
		test.That(t, h.engine.HasTarget(), test.ShouldEqual, tc.expected)
	}
}

func TestHasTargetPerMode(t *testing.T) {
	h := newHarness(t)
	h.noPrimaryTarget()
	h.secondaryDetection("algae", 0.9, 0.6, 0.5, 0.2)

	for mode, expected := range map[Mode]bool{
		PrimaryOnly:       false,
		SecondaryOnly:     true,
		PrimaryFallback:   true,
		SecondaryFallback: true,
		Fusion:            false,
	} {
		h.engine.SetMode(mode)
		test.That(t, h.engine.HasTarget(), test.ShouldEqual, expected)
	}

	// Detections of another label do not count as the target.
	h.secondaryDetection("coral", 0.9, 0.6, 0.5, 0.2)
	h.engine.SetMode(SecondaryOnly)
	test.That(t, h.engine.HasTarget(), test.ShouldBeFalse)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldEqual, 0.0)

	h.engine.SetTargetLabel("coral")
	test.That(t, h.engine.HasTarget(), test.ShouldBeTrue)
}

func TestHorizontalOffset(t *testing.T) {
	h := newHarness(t)
	h.primaryTarget(10, 2, 20)
	h.secondaryDetection("algae", 0.9, 0.75, 0.5, 0.2)
	secondaryTx := NormalizedToAngle(0.75, HorizontalFOV)

	h.engine.SetMode(PrimaryOnly)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldEqual, 10.0)
	h.engine.SetMode(SecondaryOnly)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldAlmostEqual, secondaryTx)
	h.engine.SetMode(PrimaryFallback)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldEqual, 10.0)
	h.engine.SetMode(SecondaryFallback)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldAlmostEqual, secondaryTx)
	h.engine.SetMode(Fusion)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldAlmostEqual, (10+secondaryTx)/2)

	h.noPrimaryTarget()
	test.That(t, h.engine.HorizontalOffset(), test.ShouldAlmostEqual, secondaryTx)
	h.engine.SetMode(PrimaryFallback)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldAlmostEqual, secondaryTx)
	h.engine.SetMode(PrimaryOnly)
	test.That(t, h.engine.HorizontalOffset(), test.ShouldEqual, 0.0)
}

func TestVerticalOffsetAndArea(t *testing.T) {
	h := newHarness(t)
	h.primaryTarget(0, 3, 12)
	h.secondaryDetection("algae", 0.9, 0.5, 0.25, 0.2)

	h.engine.SetMode(Fusion)
	test.That(t, h.engine.VerticalOffset(), test.ShouldEqual, 3.0)
	test.That(t, h.engine.TargetArea(), test.ShouldEqual, 12.0)

	h.engine.SetMode(SecondaryOnly)
	test.That(t, h.engine.VerticalOffset(), test.ShouldAlmostEqual, NormalizedToAngle(0.25, VerticalFOV))
	test.That(t, h.engine.TargetArea(), test.ShouldAlmostEqual, 4.0)

	h.noPrimaryTarget()
	h.engine.SetMode(PrimaryFallback)
	test.That(t, h.engine.VerticalOffset(), test.ShouldAlmostEqual, NormalizedToAngle(0.25, VerticalFOV))
	test.That(t, h.engine.TargetArea(), test.ShouldAlmostEqual, 4.0)
	h.engine.SetMode(PrimaryOnly)
	test.That(t, h.engine.VerticalOffset(), test.ShouldEqual, 0.0)
	test.That(t, h.engine.TargetArea(), test.ShouldEqual, 0.0)
}

func TestBestDetection(t *testing.T) {
	h := newHarness(t)
	// Primary target at tx=0 maps to x=0.5.
	h.primaryTarget(0, 0, 4)
	h.secondaryDetection("algae", 0.7, 0.55, 0.5, 0.3)

	h.engine.SetMode(Fusion)
	best, ok := h.engine.BestDetection("algae")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, best.Confidence, test.ShouldEqual, 0.7)

	h.engine.SetMode(PrimaryOnly)
	best, ok = h.engine.BestDetection("algae")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, best.Confidence, test.ShouldEqual, 1.0)
	_, ok = h.engine.BestDetection("coral")
	test.That(t, ok, test.ShouldBeFalse)

	h.engine.SetMode(SecondaryFallback)
	best, ok = h.engine.BestDetection("algae")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, best.X, test.ShouldEqual, 0.55)

	// Disagreeing sources still favor the coprocessor in fusion.
	h.secondaryDetection("algae", 0.8, 0.95, 0.5, 0.1)
	h.engine.SetMode(Fusion)
	best, ok = h.engine.BestDetection("algae")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, best.X, test.ShouldEqual, 0.95)

	// With the coprocessor empty, fusion falls back to the primary camera.
	h.secondaryDetection("", 0, 0, 0, 0)
	best, ok = h.engine.BestDetection("algae")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, best.Confidence, test.ShouldEqual, 1.0)
}

func TestDetectionsAndCentering(t *testing.T) {
	h := newHarness(t)
	h.primaryTarget(0.5, 0, 4)
	h.secondaryDetection("algae", 0.9, 0.5, 0.5, 0.2)

	test.That(t, h.engine.AllDetections(), test.ShouldHaveLength, 2)
	test.That(t, h.engine.DetectionsByLabel("algae"), test.ShouldHaveLength, 2)
	h.engine.SetMode(SecondaryOnly)
	test.That(t, h.engine.DetectionsByLabel("algae"), test.ShouldHaveLength, 1)
	h.engine.SetMode(PrimaryOnly)
	test.That(t, h.engine.DetectionsByLabel("coral"), test.ShouldBeEmpty)

	h.engine.SetMode(Fusion)
	test.That(t, h.engine.IsTargetCentered(1), test.ShouldBeTrue)
	h.primaryTarget(8, 0, 4)
	test.That(t, h.engine.IsTargetCentered(1), test.ShouldBeFalse)
}

func TestPeriodicTelemetry(t *testing.T) {
	h := newHarness(t)
	h.primaryTarget(4, 1, 9)
	h.secondaryDetection("algae", 0.9, 0.5, 0.5, 0.2)
	h.engine.SetMode(PrimaryFallback)
	h.engine.Periodic()

	for key, expected := range map[string]interface{}{
		"HybridVision/Mode":            "primary_fallback",
		"HybridVision/HasTarget":       true,
		"HybridVision/TX":              4.0,
		"HybridVision/TY":              1.0,
		"HybridVision/Area":            9.0,
		"HybridVision/LimelightActive": true,
		"HybridVision/CoralActive":     true,
		"HybridVision/TotalDetections": 2,
	} {
		v, ok := h.rec.Get(key)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, v, test.ShouldEqual, expected)
	}
}
