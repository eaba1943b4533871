package control

// Debouncer confirms a condition only after it held for a number of consecutive samples.
type Debouncer struct {
	cycles int
	count  int
}

// NewDebouncer returns a debouncer confirming after cycles consecutive samples. Values below one
// are treated as one.
func NewDebouncer(cycles int) *Debouncer {
	if cycles < 1 {
		cycles = 1
	}
	return &Debouncer{cycles: cycles}
}

// Update records a sample and returns whether the condition is confirmed. Any non-confirming
// sample resets the count to zero.
func (d *Debouncer) Update(condition bool) bool {
	if !condition {
		d.count = 0
		return false
	}
	if d.count < d.cycles {
		d.count++
	}
	return d.count >= d.cycles
}

// Count returns the number of consecutive confirming samples seen.
func (d *Debouncer) Count() int {
	return d.count
}

// Cycles returns the number of samples required.
func (d *Debouncer) Cycles() int {
	return d.cycles
}

// Reset clears the count.
func (d *Debouncer) Reset() {
	d.count = 0
}

// SpikeDetector confirms when a reading stays above a threshold, e.g. motor current rising as a
// game piece loads the roller.
type SpikeDetector struct {
	Threshold float64
	debouncer *Debouncer
}

// NewSpikeDetector returns a detector for readings above threshold.
func NewSpikeDetector(threshold float64, cycles int) *SpikeDetector {
	return &SpikeDetector{Threshold: threshold, debouncer: NewDebouncer(cycles)}
}

// Update records a reading and returns whether the spike is confirmed.
func (s *SpikeDetector) Update(reading float64) bool {
	return s.debouncer.Update(reading > s.Threshold)
}

// Count returns the number of consecutive readings above threshold.
func (s *SpikeDetector) Count() int {
	return s.debouncer.Count()
}

// Reset clears the detector.
func (s *SpikeDetector) Reset() {
	s.debouncer.Reset()
}

// CurrentDropDetector confirms when a reading stays more than Drop below Baseline, e.g. roller
// current falling once a game piece stops slipping.
type CurrentDropDetector struct {
	Baseline  float64
	Drop      float64
	debouncer *Debouncer
}

// NewCurrentDropDetector returns a drop detector.
func NewCurrentDropDetector(baseline, drop float64, cycles int) *CurrentDropDetector {
	return &CurrentDropDetector{Baseline: baseline, Drop: drop, debouncer: NewDebouncer(cycles)}
}

// Dropped reports whether a single reading is past the drop threshold.
func (c *CurrentDropDetector) Dropped(reading float64) bool {
	return c.Baseline-reading > c.Drop
}

// Update records a reading and returns whether the drop is confirmed.
func (c *CurrentDropDetector) Update(reading float64) bool {
	return c.debouncer.Update(c.Dropped(reading))
}

// Count returns the number of consecutive dropped readings.
func (c *CurrentDropDetector) Count() int {
	return c.debouncer.Count()
}

// Reset clears the detector.
func (c *CurrentDropDetector) Reset() {
	c.debouncer.Reset()
}
