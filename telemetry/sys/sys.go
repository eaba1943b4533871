// Package sys reports the resource usage of the robot program itself.
package sys

import (
	"os"

	"github.com/prometheus/procfs"

	"github.com/frc-reefscape/reefbot/telemetry"
)

// Stat files count time in clock ticks. sysconf(_SC_CLK_TCK) needs cgo and is 100 on every system
// the robot runs on.
const userHz = 100

// Usage is a snapshot of the process' resource usage.
type Usage struct {
	UserCPUSecs   float64
	SystemCPUSecs float64
	RssMB         float64
	Threads       int
}

// Statser reads the usage of one process from procfs.
type Statser struct {
	proc     procfs.Proc
	pageSize int
}

// NewSelfStatser returns a Statser for the current process. It fails where procfs is unavailable.
func NewSelfStatser() (*Statser, error) {
	proc, err := procfs.Self()
	if err != nil {
		return nil, err
	}
	return &Statser{proc: proc, pageSize: os.Getpagesize()}, nil
}

// Usage reads the current usage.
func (s *Statser) Usage() (Usage, error) {
	stat, err := s.proc.Stat()
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		UserCPUSecs:   float64(stat.UTime) / userHz,
		SystemCPUSecs: float64(stat.STime) / userHz,
		RssMB:         float64(stat.RSS*s.pageSize) / 1_000_000.0,
		Threads:       stat.NumThreads,
	}, nil
}

// Publish writes the usage under "System/".
func Publish(sink telemetry.Sink, usage Usage) {
	sink.Publish("System/User CPU Secs", usage.UserCPUSecs)
	sink.Publish("System/System CPU Secs", usage.SystemCPUSecs)
	sink.Publish("System/RSS MB", usage.RssMB)
	sink.Publish("System/Threads", usage.Threads)
}
