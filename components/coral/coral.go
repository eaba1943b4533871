// Package coral adapts the neural network coprocessor's detection feed. The coprocessor publishes
// each batch of detections as parallel arrays plus a count and a millisecond timestamp.
package coral

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/networktables"
	"github.com/frc-reefscape/reefbot/telemetry"
	"github.com/frc-reefscape/reefbot/utils"
	"github.com/frc-reefscape/reefbot/vision/detection"
)

// Published keys.
const (
	KeyNumDetections = "num_detections"
	KeyLabels        = "labels"
	KeyConfidences   = "confidences"
	KeyXPositions    = "x_positions"
	KeyYPositions    = "y_positions"
	KeyWidths        = "widths"
	KeyHeights       = "heights"
	KeyTimestamp     = "timestamp"
	KeyConnected     = "connected"
)

// Default values.
const (
	DefaultTable               = "Coral"
	DefaultConfidenceThreshold = 0.5
	DefaultMaxDetections       = 10
	dashboardDetections        = 5
)

// Status strings surfaced to the dashboard.
const (
	StatusWaiting         = "Waiting for coprocessor..."
	StatusValidationError = "Data validation error"
)

// Config tunes the adapter. Zero fields take defaults.
type Config struct {
	Table               string  `json:"table,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	MaxDetections       int     `json:"max_detections,omitempty"`
	// DashboardLabels get a closest-detection summary on the dashboard.
	DashboardLabels []string `json:"dashboard_labels,omitempty"`
}

// WithDefaults returns a copy with every zero field set to its default.
func (cfg Config) WithDefaults() Config {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.MaxDetections == 0 {
		cfg.MaxDetections = DefaultMaxDetections
	}
	if cfg.DashboardLabels == nil {
		cfg.DashboardLabels = []string{"coral", "algae"}
	}
	return cfg
}

// Validate checks the thresholds.
func (cfg Config) Validate(path string) error {
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return utils.NewOutOfRangeError(path+".confidence_threshold", cfg.ConfidenceThreshold, 0, 1)
	}
	if cfg.MaxDetections < 0 {
		return utils.NewOutOfRangeError(path+".max_detections", float64(cfg.MaxDetections), 0, DefaultMaxDetections*10)
	}
	return nil
}

// Coprocessor is the secondary vision source adapter. Update must be called once per control
// cycle. Accessors are safe from any goroutine and return copies.
type Coprocessor struct {
	table  networktables.Table
	cfg    Config
	sink   telemetry.Sink
	logger logging.Logger
	filter detection.Postprocessor

	mu            sync.RWMutex
	connected     bool
	detections    []detection.Detection
	lastTimestamp float64
	status        string

	validationFailures atomic.Int64
	batches            atomic.Int64
}

// New returns an adapter over the coprocessor's table.
func New(table networktables.Table, cfg Config, sink telemetry.Sink, logger logging.Logger) *Coprocessor {
	if sink == nil {
		sink = telemetry.Noop
	}
	cfg = cfg.WithDefaults()
	c := &Coprocessor{
		table:  table,
		cfg:    cfg,
		sink:   telemetry.Prefixed(sink, "Coral"),
		logger: logger,
		filter: detection.Chain(
			detection.NewScoreFilter(cfg.ConfidenceThreshold),
			detection.NewCountLimit(cfg.MaxDetections),
		),
		status: StatusWaiting,
	}
	c.sink.Publish("Status", StatusWaiting)
	return c
}

// Update ingests the latest batch if its timestamp is newer than the last one seen since the
// coprocessor connected. Batches stamped 0 are never ingested.
func (c *Coprocessor) Update() {
	connected := c.table.Bool(KeyConnected, false)
	if !connected {
		c.mu.Lock()
		if c.connected {
			c.logger.Info("coprocessor disconnected, clearing detections")
		}
		c.connected = false
		c.detections = nil
		c.lastTimestamp = 0
		c.status = StatusWaiting
		c.mu.Unlock()
		return
	}

	timestamp := c.table.Number(KeyTimestamp, 0)
	c.mu.Lock()
	if !c.connected {
		c.logger.Info("coprocessor connected")
	}
	c.connected = true
	if timestamp <= c.lastTimestamp {
		if timestamp < c.lastTimestamp {
			c.logger.Debugw("ignoring stale detection batch", "previous", c.lastTimestamp, "current", timestamp)
		}
		c.mu.Unlock()
		return
	}
	c.lastTimestamp = timestamp
	c.mu.Unlock()

	batch, err := c.readBatch()
	if err != nil {
		c.validationFailures.Inc()
		c.logger.Warnw("discarding detection batch", "error", err)
		c.sink.Publish("Status", StatusValidationError)
		c.mu.Lock()
		c.status = StatusValidationError
		c.mu.Unlock()
		return
	}
	c.batches.Inc()

	c.mu.Lock()
	c.detections = batch
	c.status = fmt.Sprintf("Connected - %d detections", len(batch))
	c.mu.Unlock()
}

// readBatch snapshots the parallel arrays. The whole batch is rejected when any length disagrees
// with the published count.
func (c *Coprocessor) readBatch() ([]detection.Detection, error) {
	count := int(c.table.Number(KeyNumDetections, 0))
	labels := c.table.StringArray(KeyLabels)
	confidences := c.table.NumberArray(KeyConfidences)
	xs := c.table.NumberArray(KeyXPositions)
	ys := c.table.NumberArray(KeyYPositions)
	widths := c.table.NumberArray(KeyWidths)
	heights := c.table.NumberArray(KeyHeights)

	if count < 0 || len(labels) != count || len(confidences) != count || len(xs) != count ||
		len(ys) != count || len(widths) != count || len(heights) != count {
		return nil, errors.Errorf(
			"array lengths do not match count %d: labels=%d confidences=%d x=%d y=%d widths=%d heights=%d",
			count, len(labels), len(confidences), len(xs), len(ys), len(widths), len(heights))
	}

	batch := make([]detection.Detection, 0, count)
	for i := 0; i < count; i++ {
		det, err := detection.NewDetection(labels[i], confidences[i], xs[i], ys[i], widths[i], heights[i])
		if err != nil {
			c.logger.Debugw("dropping malformed detection", "index", i, "error", err)
			continue
		}
		batch = append(batch, det)
	}
	return c.filter(batch), nil
}

// Connected reports whether the coprocessor says it is running.
func (c *Coprocessor) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Detections returns a copy of the current detections in arrival order.
func (c *Coprocessor) Detections() []detection.Detection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]detection.Detection{}, c.detections...)
}

// DetectionsByLabel returns the detections carrying label, compared case-insensitively.
func (c *Coprocessor) DetectionsByLabel(label string) []detection.Detection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return detection.ByLabel(c.detections, label)
}

// ClosestDetection returns the labeled detection with the largest area.
func (c *Coprocessor) ClosestDetection(label string) (detection.Detection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return detection.Closest(c.detections, label)
}

// MostConfidentDetection returns the labeled detection with the highest confidence.
func (c *Coprocessor) MostConfidentDetection(label string) (detection.Detection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return detection.MostConfident(c.detections, label)
}

// DetectionCount returns the number of current detections.
func (c *Coprocessor) DetectionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.detections)
}

// HasDetection reports whether any current detection carries label.
func (c *Coprocessor) HasDetection(label string) bool {
	_, ok := c.ClosestDetection(label)
	return ok
}

// Status is the dashboard status line.
func (c *Coprocessor) Status() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// ValidationFailures counts rejected batches.
func (c *Coprocessor) ValidationFailures() int64 {
	return c.validationFailures.Load()
}

// Batches counts accepted batches.
func (c *Coprocessor) Batches() int64 {
	return c.batches.Load()
}

// Periodic publishes dashboard values.
func (c *Coprocessor) Periodic() {
	connected := c.Connected()
	dets := c.Detections()
	c.sink.Publish("Connected", connected)
	c.sink.Publish("Detections", len(dets))
	c.sink.Publish("Status", c.Status())
	if !connected {
		return
	}
	for i := 0; i < dashboardDetections; i++ {
		summary := ""
		if i < len(dets) {
			summary = dets[i].String()
		}
		c.sink.Publish(fmt.Sprintf("Detection%d", i), summary)
	}
	title := cases.Title(language.Und, cases.NoLower)
	for _, label := range c.cfg.DashboardLabels {
		name := title.String(label)
		closest, ok := detection.Closest(dets, label)
		c.sink.Publish("Has"+name, ok)
		if ok {
			c.sink.Publish(name+"X", closest.X)
			c.sink.Publish(name+"Y", closest.Y)
			c.sink.Publish(name+"Conf", closest.Confidence)
		}
	}
}
