// Package hybrid fuses the primary vision camera and the detection coprocessor into a single
// target estimate, according to a selectable mode.
package hybrid

import (
	"math"
	"sync"

	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/telemetry"
	"github.com/frc-reefscape/reefbot/vision/detection"
)

// Camera field of view in degrees, used to turn normalized coordinates into angles.
const (
	HorizontalFOV = 59.6
	VerticalFOV   = 49.7
	// SimilarityTolerance is the normalized center distance under which two detections are
	// taken to be the same object.
	SimilarityTolerance = 0.2
	// DefaultTargetLabel is tracked unless configured otherwise.
	DefaultTargetLabel = "algae"
)

// PrimarySource is a camera reporting one best target as angles.
type PrimarySource interface {
	HasTarget() bool
	HorizontalOffset() float64
	VerticalOffset() float64
	TargetArea() float64
	PrimaryDetection() (detection.Detection, bool)
	DetectionsByLabel(label string) []detection.Detection
}

// SecondarySource is a detector reporting many labeled detections.
type SecondarySource interface {
	Connected() bool
	Detections() []detection.Detection
	DetectionsByLabel(label string) []detection.Detection
	ClosestDetection(label string) (detection.Detection, bool)
	MostConfidentDetection(label string) (detection.Detection, bool)
}

// NormalizedToAngle converts a normalized image coordinate to degrees from the image center.
func NormalizedToAngle(normalized, fovDeg float64) float64 {
	return (normalized - 0.5) * fovDeg
}

// Engine combines the two sources. Mode and label changes are safe from any goroutine.
type Engine struct {
	primary   PrimarySource
	secondary SecondarySource
	sink      telemetry.Sink
	logger    logging.Logger

	mu    sync.RWMutex
	mode  Mode
	label string
}

// New returns an engine in Fusion mode tracking the default label.
func New(primary PrimarySource, secondary SecondarySource, sink telemetry.Sink, logger logging.Logger) *Engine {
	if sink == nil {
		sink = telemetry.Noop
	}
	e := &Engine{
		primary:   primary,
		secondary: secondary,
		sink:      telemetry.Prefixed(sink, "HybridVision"),
		logger:    logger,
		mode:      Fusion,
		label:     DefaultTargetLabel,
	}
	e.sink.Publish("Mode", e.mode.String())
	return e
}

// SetMode switches the combination policy.
func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	previous := e.mode
	e.mode = mode
	e.mu.Unlock()
	if previous != mode {
		e.logger.Infow("vision mode changed", "from", previous, "to", mode)
	}
	e.sink.Publish("Mode", mode.String())
}

// Mode returns the current mode.
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetTargetLabel changes the label whose detections drive the offsets.
func (e *Engine) SetTargetLabel(label string) {
	if label == "" {
		label = DefaultTargetLabel
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.label = label
}

// TargetLabel returns the tracked label.
func (e *Engine) TargetLabel() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.label
}

// Primary returns the primary source.
func (e *Engine) Primary() PrimarySource {
	return e.primary
}

// Secondary returns the secondary source.
func (e *Engine) Secondary() SecondarySource {
	return e.secondary
}

func (e *Engine) state() (Mode, string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode, e.label
}

// The secondary counts as seeing the target only when it has a detection of the tracked label,
// so that a target is never reported while the offset falls back to zero.
func (e *Engine) secondaryTarget(label string) (detection.Detection, bool) {
	if !e.secondary.Connected() {
		return detection.Detection{}, false
	}
	return e.secondary.ClosestDetection(label)
}

// HasTarget reports whether the current mode has a target. Fusion requires both sources. The
// secondary source counts only when it is connected and has a detection carrying the target label;
// other labels do not count.
func (e *Engine) HasTarget() bool {
	mode, label := e.state()
	_, secondary := e.secondaryTarget(label)
	primary := e.primary.HasTarget()
	switch mode {
	case PrimaryOnly:
		return primary
	case SecondaryOnly:
		return secondary
	case PrimaryFallback, SecondaryFallback:
		return primary || secondary
	case Fusion:
		return primary && secondary
	}
	return false
}

// HorizontalOffset is the target's angle right of center in degrees, 0 without a target.
func (e *Engine) HorizontalOffset() float64 {
	mode, label := e.state()
	primary := e.primary.HasTarget()
	secondaryDet, secondary := e.secondaryTarget(label)
	secondaryTx := NormalizedToAngle(secondaryDet.X, HorizontalFOV)

	switch mode {
	case PrimaryOnly:
		if primary {
			return e.primary.HorizontalOffset()
		}
	case SecondaryOnly:
		if secondary {
			return secondaryTx
		}
	case PrimaryFallback:
		if primary {
			return e.primary.HorizontalOffset()
		}
		if secondary {
			return secondaryTx
		}
	case SecondaryFallback:
		if secondary {
			return secondaryTx
		}
		if primary {
			return e.primary.HorizontalOffset()
		}
	case Fusion:
		switch {
		case primary && secondary:
			return (e.primary.HorizontalOffset() + secondaryTx) / 2
		case primary:
			return e.primary.HorizontalOffset()
		case secondary:
			return secondaryTx
		}
	}
	return 0
}

// VerticalOffset is the target's angle above center in degrees. Primary-first modes and Fusion
// use the primary camera.
func (e *Engine) VerticalOffset() float64 {
	mode, label := e.state()
	switch mode {
	case PrimaryOnly, PrimaryFallback, Fusion:
		if e.primary.HasTarget() {
			return e.primary.VerticalOffset()
		}
		if mode != PrimaryFallback {
			return 0
		}
	}
	if det, ok := e.secondaryTarget(label); ok {
		return NormalizedToAngle(det.Y, VerticalFOV)
	}
	if mode == SecondaryFallback && e.primary.HasTarget() {
		return e.primary.VerticalOffset()
	}
	return 0
}

// TargetArea is the target's size as a percentage of the image.
func (e *Engine) TargetArea() float64 {
	mode, label := e.state()
	primary := e.primary.HasTarget()
	if primary && (mode == PrimaryOnly || mode == PrimaryFallback || mode == Fusion) {
		return e.primary.TargetArea()
	}
	if mode == PrimaryOnly {
		return 0
	}
	if det, ok := e.secondaryTarget(label); ok {
		return det.Area() * 100
	}
	if primary && mode == SecondaryFallback {
		return e.primary.TargetArea()
	}
	return 0
}

// AllDetections combines every secondary detection with the primary target.
func (e *Engine) AllDetections() []detection.Detection {
	var combined []detection.Detection
	if e.secondary.Connected() {
		combined = append(combined, e.secondary.Detections()...)
	}
	if det, ok := e.primary.PrimaryDetection(); ok {
		combined = append(combined, det)
	}
	return combined
}

// DetectionsByLabel returns the labeled detections the current mode may use.
func (e *Engine) DetectionsByLabel(label string) []detection.Detection {
	mode, _ := e.state()
	switch mode {
	case PrimaryOnly:
		return e.primary.DetectionsByLabel(label)
	case SecondaryOnly:
		return e.secondary.DetectionsByLabel(label)
	}
	var combined []detection.Detection
	if e.secondary.Connected() {
		combined = append(combined, e.secondary.DetectionsByLabel(label)...)
	}
	return append(combined, e.primary.DetectionsByLabel(label)...)
}

func (e *Engine) primaryDetection(label string) (detection.Detection, bool) {
	det, ok := e.primary.PrimaryDetection()
	if !ok || !det.HasLabel(label) {
		return detection.Detection{}, false
	}
	return det, true
}

// BestDetection returns the single detection the current mode trusts most for label. In Fusion
// the coprocessor's most confident detection wins, cross-checked against the primary target.
func (e *Engine) BestDetection(label string) (detection.Detection, bool) {
	mode, _ := e.state()
	connected := e.secondary.Connected()
	closest := func() (detection.Detection, bool) {
		if !connected {
			return detection.Detection{}, false
		}
		return e.secondary.ClosestDetection(label)
	}

	switch mode {
	case PrimaryOnly:
		return e.primaryDetection(label)
	case SecondaryOnly:
		return closest()
	case PrimaryFallback:
		if det, ok := e.primaryDetection(label); ok {
			return det, true
		}
		return closest()
	case SecondaryFallback:
		if det, ok := closest(); ok {
			return det, true
		}
		return e.primaryDetection(label)
	case Fusion:
		var secondaryDet detection.Detection
		secondary := false
		if connected {
			secondaryDet, secondary = e.secondary.MostConfidentDetection(label)
		}
		primaryDet, primary := e.primaryDetection(label)
		if secondary && primary && !detection.Similar(secondaryDet, primaryDet, SimilarityTolerance) {
			e.logger.Debugw("vision sources disagree, trusting the coprocessor",
				"secondary", secondaryDet.String(), "primary", primaryDet.String())
		}
		if secondary {
			return secondaryDet, true
		}
		return primaryDet, primary
	}
	return detection.Detection{}, false
}

// IsTargetCentered reports whether there is a target within deadbandDeg of center.
func (e *Engine) IsTargetCentered(deadbandDeg float64) bool {
	return e.HasTarget() && math.Abs(e.HorizontalOffset()) < deadbandDeg
}

// Periodic publishes dashboard values.
func (e *Engine) Periodic() {
	mode, label := e.state()
	_, secondary := e.secondaryTarget(label)
	e.sink.Publish("Mode", mode.String())
	e.sink.Publish("HasTarget", e.HasTarget())
	e.sink.Publish("TX", e.HorizontalOffset())
	e.sink.Publish("TY", e.VerticalOffset())
	e.sink.Publish("Area", e.TargetArea())
	e.sink.Publish("LimelightActive", e.primary.HasTarget())
	e.sink.Publish("CoralActive", secondary)
	e.sink.Publish("TotalDetections", len(e.AllDetections()))
}
