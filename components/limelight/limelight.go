// Package limelight adapts the primary vision camera's published target data. The camera reports
// a single best target as angular offsets from the crosshair plus the percentage of the image it
// covers.
package limelight

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/networktables"
	"github.com/frc-reefscape/reefbot/telemetry"
	"github.com/frc-reefscape/reefbot/utils"
	"github.com/frc-reefscape/reefbot/vision/detection"
)

// Published keys.
const (
	KeyHasTarget      = "tv"
	KeyHorizontal     = "tx"
	KeyVertical       = "ty"
	KeyArea           = "ta"
	KeyClass          = "tclass"
	KeyPipeline       = "pipeline"
	KeyActivePipeline = "getpipe"
	KeyLEDMode        = "ledMode"
	KeyCamMode        = "camMode"
	KeyCamTran        = "camtran"
)

// LEDMode controls the camera's illumination.
type LEDMode int

// LED modes, as understood by the camera.
const (
	LEDPipelineDefault LEDMode = iota
	LEDOff
	LEDBlink
	LEDOn
)

func (m LEDMode) String() string {
	switch m {
	case LEDPipelineDefault:
		return "pipeline"
	case LEDOff:
		return "off"
	case LEDBlink:
		return "blink"
	case LEDOn:
		return "on"
	}
	return "unknown"
}

// CamMode selects between vision processing and a plain driver camera.
type CamMode int

// Camera modes.
const (
	CamVision CamMode = iota
	CamDriver
)

// Pipeline indices configured on the camera.
const (
	AlgaePipeline = 0
	CoralPipeline = 1
)

// Config tunes the adapter. Zero fields take defaults.
type Config struct {
	Table         string  `json:"table,omitempty"`
	DefaultLabel  string  `json:"default_label,omitempty"`
	HorizontalFOV float64 `json:"horizontal_fov_deg,omitempty"`
	VerticalFOV   float64 `json:"vertical_fov_deg,omitempty"`
	// DistanceConstant is k in the rough range estimate k/sqrt(area), area in percent.
	DistanceConstant float64 `json:"distance_constant,omitempty"`
	// EstimateConstant is k in the fallback pose estimate k/sqrt(area/100), in meters.
	EstimateConstant float64 `json:"estimate_constant,omitempty"`
	CameraHeightM    float64 `json:"camera_height_m,omitempty"`
	CameraAngleDeg   float64 `json:"camera_angle_deg,omitempty"`
	GamePieceHeightM float64 `json:"game_piece_height_m,omitempty"`
}

// Default values.
const (
	DefaultTable            = "limelight"
	DefaultLabel            = "algae"
	DefaultHorizontalFOV    = 59.6
	DefaultVerticalFOV      = 49.7
	DefaultDistanceConstant = 48.0
	DefaultEstimateConstant = 2.0
	DefaultCameraHeightM    = 0.5
	DefaultGamePieceHeightM = 0.1
	defaultEstimateDistance = 5.0
)

// WithDefaults returns a copy with every zero field set to its default.
func (cfg Config) WithDefaults() Config {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = DefaultLabel
	}
	if cfg.HorizontalFOV == 0 {
		cfg.HorizontalFOV = DefaultHorizontalFOV
	}
	if cfg.VerticalFOV == 0 {
		cfg.VerticalFOV = DefaultVerticalFOV
	}
	if cfg.DistanceConstant == 0 {
		cfg.DistanceConstant = DefaultDistanceConstant
	}
	if cfg.EstimateConstant == 0 {
		cfg.EstimateConstant = DefaultEstimateConstant
	}
	if cfg.CameraHeightM == 0 {
		cfg.CameraHeightM = DefaultCameraHeightM
	}
	if cfg.GamePieceHeightM == 0 {
		cfg.GamePieceHeightM = DefaultGamePieceHeightM
	}
	return cfg
}

// Validate checks the field of view and constants.
func (cfg Config) Validate(path string) error {
	if cfg.HorizontalFOV < 0 || cfg.HorizontalFOV >= 180 {
		return utils.NewOutOfRangeError(path+".horizontal_fov_deg", cfg.HorizontalFOV, 0, 180)
	}
	if cfg.VerticalFOV < 0 || cfg.VerticalFOV >= 180 {
		return utils.NewOutOfRangeError(path+".vertical_fov_deg", cfg.VerticalFOV, 0, 180)
	}
	if cfg.DistanceConstant < 0 || cfg.EstimateConstant < 0 {
		return errors.Errorf("%s: distance constants must not be negative", path)
	}
	return nil
}

type snapshot struct {
	hasTarget  bool
	horizontal float64
	vertical   float64
	area       float64
	class      string
}

// Camera is the primary vision source adapter. Update must be called once per control cycle; all
// other readers observe the state captured by the last Update.
type Camera struct {
	table  networktables.Table
	cfg    Config
	clk    clock.Clock
	sink   telemetry.Sink
	logger logging.Logger

	mu            sync.RWMutex
	state         snapshot
	estimate      detection.GamePieceEstimate
	lastUpdate    time.Time
	start         time.Time
	pipeline      int
	ledMode       LEDMode
	camMode       CamMode
	lastHadTarget bool
}

// New returns an adapter over the camera's table. The LEDs are left to the pipeline default.
func New(table networktables.Table, cfg Config, clk clock.Clock, sink telemetry.Sink, logger logging.Logger) *Camera {
	if sink == nil {
		sink = telemetry.Noop
	}
	now := clk.Now()
	c := &Camera{
		table:      table,
		cfg:        cfg.WithDefaults(),
		clk:        clk,
		sink:       telemetry.Prefixed(sink, "Limelight"),
		logger:     logger,
		estimate:   detection.NoDetection(),
		lastUpdate: now,
		start:      now,
	}
	c.SetLEDMode(LEDPipelineDefault)
	return c
}

// Update reads the feed. A missing or malformed feed reads as no target.
func (c *Camera) Update() {
	s := snapshot{hasTarget: c.table.Number(KeyHasTarget, 0) == 1}
	if s.hasTarget {
		s.horizontal = c.table.Number(KeyHorizontal, 0)
		s.vertical = c.table.Number(KeyVertical, 0)
		s.area = c.table.Number(KeyArea, 0)
		s.class = c.table.String(KeyClass, "")
		if !utils.IsFinite(s.horizontal) || !utils.IsFinite(s.vertical) || !utils.IsFinite(s.area) {
			s = snapshot{}
		}
		s.area = utils.Clamp(s.area, 0, 100)
	}

	now := c.clk.Now()
	estimate := detection.NoDetection()
	if s.hasTarget {
		estimate = c.estimateFrom(s, now)
	}

	c.mu.Lock()
	if s.hasTarget != c.lastHadTarget {
		c.logger.Debugw("primary target changed", "has_target", s.hasTarget)
	}
	c.lastHadTarget = s.hasTarget
	c.state = s
	c.estimate = estimate
	c.lastUpdate = now
	c.mu.Unlock()
}

func (c *Camera) estimateFrom(s snapshot, now time.Time) detection.GamePieceEstimate {
	timestamp := now.Sub(c.start).Seconds()
	if camtran := c.table.NumberArray(KeyCamTran); len(camtran) == 6 {
		return detection.GamePieceEstimate{
			Detected:  true,
			Position:  r3.Vector{X: camtran[0], Y: camtran[1], Z: camtran[2]},
			Heading:   camtran[4],
			Timestamp: timestamp,
		}
	}

	distance := defaultEstimateDistance
	if s.area > 0 {
		distance = c.cfg.EstimateConstant / math.Sqrt(s.area/100)
	}
	angle := utils.DegToRad(s.horizontal)
	return detection.GamePieceEstimate{
		Detected: true,
		Position: r3.Vector{
			X: distance * math.Sin(angle),
			Y: distance * math.Cos(angle),
			Z: c.cfg.CameraHeightM - c.cfg.GamePieceHeightM + math.Tan(utils.DegToRad(c.cfg.CameraAngleDeg+s.vertical)),
		},
		Heading:   s.horizontal,
		Timestamp: timestamp,
	}
}

// HasTarget reports whether the camera sees a target.
func (c *Camera) HasTarget() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.hasTarget
}

// HorizontalOffset is the target's angle right of the crosshair in degrees, 0 without a target.
func (c *Camera) HorizontalOffset() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.horizontal
}

// VerticalOffset is the target's angle above the crosshair in degrees, 0 without a target.
func (c *Camera) VerticalOffset() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.vertical
}

// TargetArea is the percentage of the image the target covers, in [0, 100].
func (c *Camera) TargetArea() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.area
}

// Label is the reported class of the target, or the configured default label.
func (c *Camera) Label() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.class == "" {
		return c.cfg.DefaultLabel
	}
	return c.state.class
}

// PrimaryDetection converts the target to a normalized detection. The camera has no notion of
// confidence so it is always 1. The box is a square estimated from the area.
func (c *Camera) PrimaryDetection() (detection.Detection, bool) {
	c.mu.RLock()
	s := c.state
	c.mu.RUnlock()
	if !s.hasTarget {
		return detection.Detection{}, false
	}
	label := s.class
	if label == "" {
		label = c.cfg.DefaultLabel
	}
	hfov, vfov := c.cfg.HorizontalFOV, c.cfg.VerticalFOV
	size := math.Sqrt(s.area / 100)
	det, err := detection.NewDetection(
		label,
		1,
		(s.horizontal+hfov/2)/hfov,
		(s.vertical+vfov/2)/vfov,
		size,
		size,
	)
	if err != nil {
		return detection.Detection{}, false
	}
	return det, true
}

// DetectionsByLabel returns the primary detection when its label matches.
func (c *Camera) DetectionsByLabel(label string) []detection.Detection {
	det, ok := c.PrimaryDetection()
	if !ok || !det.HasLabel(label) {
		return nil
	}
	return []detection.Detection{det}
}

// EstimatedDistance is a rough range in the calibration constant's units, 0 without a target.
func (c *Camera) EstimatedDistance() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.hasTarget {
		return 0
	}
	return c.cfg.DistanceConstant / math.Sqrt(math.Max(c.state.area, 0.1))
}

// GamePieceEstimate returns the last estimated game piece pose.
func (c *Camera) GamePieceEstimate() detection.GamePieceEstimate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimate
}

// IsAligned reports whether a target is within tolerance degrees of the crosshair.
func (c *Camera) IsAligned(toleranceDeg float64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.hasTarget && math.Abs(c.state.horizontal) < toleranceDeg
}

// TimeSinceLastUpdate is the time since Update last ran.
func (c *Camera) TimeSinceLastUpdate() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clk.Since(c.lastUpdate)
}

// SetPipeline requests a processing pipeline.
func (c *Camera) SetPipeline(index int) {
	c.mu.Lock()
	c.pipeline = index
	c.mu.Unlock()
	c.table.Put(KeyPipeline, index)
}

// Pipeline returns the requested pipeline.
func (c *Camera) Pipeline() int {
	return int(c.table.Number(KeyPipeline, float64(c.requestedPipeline())))
}

func (c *Camera) requestedPipeline() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pipeline
}

// ActivePipeline returns the pipeline the camera reports running, falling back to the requested
// one before the camera has reported.
func (c *Camera) ActivePipeline() int {
	return int(c.table.Number(KeyActivePipeline, float64(c.Pipeline())))
}

// SetLEDMode sets the illumination mode.
func (c *Camera) SetLEDMode(mode LEDMode) {
	c.mu.Lock()
	c.ledMode = mode
	c.mu.Unlock()
	c.table.Put(KeyLEDMode, int(mode))
}

// LEDMode returns the last requested illumination mode.
func (c *Camera) LEDMode() LEDMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledMode
}

// SetLEDs forces the LEDs on or off.
func (c *Camera) SetLEDs(on bool) {
	if on {
		c.SetLEDMode(LEDOn)
		return
	}
	c.SetLEDMode(LEDOff)
}

// SetCamMode switches between vision processing and driver camera.
func (c *Camera) SetCamMode(mode CamMode) {
	c.mu.Lock()
	c.camMode = mode
	c.mu.Unlock()
	c.table.Put(KeyCamMode, int(mode))
}

// Periodic publishes dashboard values.
func (c *Camera) Periodic() {
	c.mu.RLock()
	s := c.state
	estimate := c.estimate
	c.mu.RUnlock()

	c.sink.Publish("HasTarget", s.hasTarget)
	c.sink.Publish("TX", s.horizontal)
	c.sink.Publish("TY", s.vertical)
	c.sink.Publish("TA", s.area)
	c.sink.Publish("Pipeline", c.ActivePipeline())
	c.sink.Publish("GamePiece", estimate.String())
	if s.hasTarget {
		c.sink.Publish("Status", "Target Acquired")
		c.sink.Publish("Distance", estimate.Distance2D())
		c.sink.Publish("Angle", estimate.BearingDeg())
		c.sink.Publish("Class", c.Label())
	} else {
		c.sink.Publish("Status", "No Target")
	}
}

// CamMode returns the last requested camera mode.
func (c *Camera) CamMode() CamMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.camMode
}
