package detection

import (
	"github.com/samber/lo"
)

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// NewScoreFilter returns a function that filters out detections below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		return lo.Filter(in, func(d Detection, _ int) bool {
			return d.Confidence >= conf
		})
	}
}

// NewLabelFilter keeps only detections carrying the label, compared case-insensitively.
func NewLabelFilter(label string) Postprocessor {
	return func(in []Detection) []Detection {
		return lo.Filter(in, func(d Detection, _ int) bool {
			return d.HasLabel(label)
		})
	}
}

// NewCountLimit keeps at most n detections, in arrival order.
func NewCountLimit(n int) Postprocessor {
	return func(in []Detection) []Detection {
		if n < 0 {
			n = 0
		}
		if len(in) <= n {
			return in
		}
		return in[:n]
	}
}

// Chain applies the postprocessors in order.
func Chain(steps ...Postprocessor) Postprocessor {
	return func(in []Detection) []Detection {
		for _, step := range steps {
			in = step(in)
		}
		return in
	}
}

// ByLabel returns a new slice with the detections carrying the label.
func ByLabel(dets []Detection, label string) []Detection {
	return NewLabelFilter(label)(dets)
}

// Closest returns the labeled detection with the largest box area. Ties keep the first seen.
func Closest(dets []Detection, label string) (Detection, bool) {
	return bestBy(dets, label, Detection.Area)
}

// MostConfident returns the labeled detection with the highest confidence. Ties keep the first
// seen.
func MostConfident(dets []Detection, label string) (Detection, bool) {
	return bestBy(dets, label, func(d Detection) float64 { return d.Confidence })
}

// Any label matches when label is empty.
func bestBy(dets []Detection, label string, score func(Detection) float64) (Detection, bool) {
	candidates := dets
	if label != "" {
		candidates = ByLabel(dets, label)
	}
	if len(candidates) == 0 {
		return Detection{}, false
	}
	return lo.MaxBy(candidates, func(a, b Detection) bool {
		return score(a) > score(b)
	}), true
}
