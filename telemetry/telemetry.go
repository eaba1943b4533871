// Package telemetry publishes one-way diagnostic values for the driver dashboard.
package telemetry

import (
	"strings"
	"sync"

	"github.com/frc-reefscape/reefbot/networktables"
)

// DashboardTable is the table the driver station reads.
const DashboardTable = "SmartDashboard"

// A Sink receives keyed diagnostic values. Publishing must never block the control loop.
type Sink interface {
	Publish(key string, value interface{})
}

// Noop discards everything.
var Noop Sink = noopSink{}

type noopSink struct{}

func (noopSink) Publish(string, interface{}) {}

type tableSink struct {
	table networktables.Table
}

// NewTableSink publishes into a network table.
func NewTableSink(table networktables.Table) Sink {
	return &tableSink{table: table}
}

func (s *tableSink) Publish(key string, value interface{}) {
	s.table.Put(key, value)
}

// Prefixed returns a sink that prepends "prefix/" to every key.
func Prefixed(sink Sink, prefix string) Sink {
	return &prefixedSink{sink: sink, prefix: strings.TrimSuffix(prefix, "/") + "/"}
}

type prefixedSink struct {
	sink   Sink
	prefix string
}

func (s *prefixedSink) Publish(key string, value interface{}) {
	s.sink.Publish(s.prefix+key, value)
}

// Recorder keeps the latest value per key.
type Recorder struct {
	mu     sync.Mutex
	values map[string]interface{}
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{values: map[string]interface{}{}}
}

// Publish records the value.
func (r *Recorder) Publish(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
}

// Get returns the latest value published under key.
func (r *Recorder) Get(key string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok
}
