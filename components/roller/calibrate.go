package roller

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// MinDropThreshold is the smallest drop threshold suggested, so that a perfectly steady motor
// still needs a real drop to trigger.
const MinDropThreshold = 1.0

// Calibration summarizes roller current while free running.
type Calibration struct {
	Samples                int     `json:"samples"`
	Baseline               float64 `json:"baseline_current_amps"`
	StdDev                 float64 `json:"stddev_amps"`
	Min                    float64 `json:"min_amps"`
	Max                    float64 `json:"max_amps"`
	P5                     float64 `json:"p5_amps"`
	SuggestedDropThreshold float64 `json:"suggested_drop_threshold_amps"`
}

// Calibrator collects current samples.
type Calibrator struct {
	mu      sync.Mutex
	samples stats.Float64Data
}

// NewCalibrator returns an empty calibrator.
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Add records a sample. Non-finite samples are ignored.
func (c *Calibrator) Add(amps float64) {
	if math.IsNaN(amps) || math.IsInf(amps, 0) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, amps)
}

// Len returns the number of samples.
func (c *Calibrator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples.Len()
}

// Result computes the baseline as the mean current and suggests a drop threshold of three
// standard deviations, or the distance from the mean to the 5th percentile if that is larger.
func (c *Calibrator) Result() (Calibration, error) {
	c.mu.Lock()
	data := append(stats.Float64Data(nil), c.samples...)
	c.mu.Unlock()
	if data.Len() < 2 {
		return Calibration{}, errors.Errorf("need at least 2 current samples, have %d", data.Len())
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return Calibration{}, errors.Wrap(err, "mean")
	}
	stddev, err := stats.StandardDeviation(data)
	if err != nil {
		return Calibration{}, errors.Wrap(err, "standard deviation")
	}
	lo, err := stats.Min(data)
	if err != nil {
		return Calibration{}, errors.Wrap(err, "min")
	}
	hi, err := stats.Max(data)
	if err != nil {
		return Calibration{}, errors.Wrap(err, "max")
	}
	// The percentile is undefined below 20 samples.
	p5 := lo
	if data.Len() >= 20 {
		if p5, err = stats.Percentile(data, 5); err != nil {
			return Calibration{}, errors.Wrap(err, "percentile")
		}
	}

	suggested := math.Max(3*stddev, mean-p5)
	return Calibration{
		Samples:                data.Len(),
		Baseline:               mean,
		StdDev:                 stddev,
		Min:                    lo,
		Max:                    hi,
		P5:                     p5,
		SuggestedDropThreshold: math.Max(suggested, MinDropThreshold),
	}, nil
}

// ReadSamples loads current samples from a CSV log. The column named "current" (any case) is
// used, or the last column when there is no header.
func ReadSamples(r io.Reader) (*Calibrator, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	c := NewCalibrator()
	column := -1
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading current log")
		}
		line++
		if len(record) == 0 {
			continue
		}
		if line == 1 {
			if idx := headerIndex(record); idx >= 0 {
				column = idx
				continue
			}
		}
		idx := column
		if idx < 0 {
			idx = len(record) - 1
		}
		if idx >= len(record) {
			return nil, errors.Errorf("line %d: missing current column", line)
		}
		amps, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		c.Add(amps)
	}
	return c, nil
}

func headerIndex(record []string) int {
	for i, field := range record {
		if strings.EqualFold(strings.TrimSpace(field), "current") {
			return i
		}
	}
	return -1
}
