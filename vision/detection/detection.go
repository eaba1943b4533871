// Package detection defines the normalized object detections produced by the vision sources and
// the helpers used to filter and select among them.
package detection

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/utils"
)

// A Detection is one labeled object seen in a camera frame. Coordinates are normalized image
// coordinates in [0, 1] with the origin at the top left; X and Y give the box center.
type Detection struct {
	Label      string
	Confidence float64
	X          float64
	Y          float64
	Width      float64
	Height     float64
}

// NewDetection builds a detection, rejecting non-finite values and confidences outside [0, 1].
// Box geometry is clamped into [0, 1].
func NewDetection(label string, confidence, x, y, width, height float64) (Detection, error) {
	for _, v := range []float64{confidence, x, y, width, height} {
		if !utils.IsFinite(v) {
			return Detection{}, errors.Errorf("detection %q has a non-finite value", label)
		}
	}
	if confidence < 0 || confidence > 1 {
		return Detection{}, errors.Errorf("detection %q confidence %v outside [0, 1]", label, confidence)
	}
	return Detection{
		Label:      label,
		Confidence: confidence,
		X:          utils.Clamp(x, 0, 1),
		Y:          utils.Clamp(y, 0, 1),
		Width:      utils.Clamp(width, 0, 1),
		Height:     utils.Clamp(height, 0, 1),
	}, nil
}

// Area is the normalized box area, used as a proxy for closeness.
func (d Detection) Area() float64 {
	return d.Width * d.Height
}

// HasLabel compares labels case-insensitively.
func (d Detection) HasLabel(label string) bool {
	return strings.EqualFold(d.Label, label)
}

func (d Detection) String() string {
	return fmt.Sprintf("%s (%.2f%%) at (%.3f, %.3f)", d.Label, d.Confidence*100, d.X, d.Y)
}

// Similar reports whether two detections likely describe the same object: their centers differ
// by less than tol on both axes.
func Similar(a, b Detection, tol float64) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx < tol && dx > -tol && dy < tol && dy > -tol
}
