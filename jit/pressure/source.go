package pressure

import (
	"go.uber.org/atomic"
)

// Signal is one sample of system memory.
type Signal struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// AvailableFraction returns available/total, or 1 when total is unknown.
func (s Signal) AvailableFraction() float64 {
	if s.TotalBytes == 0 {
		return 1
	}
	if s.AvailableBytes >= s.TotalBytes {
		return 1
	}
	return float64(s.AvailableBytes) / float64(s.TotalBytes)
}

// Source samples system memory.
type Source interface {
	Sample() (Signal, error)
}

// StaticSource returns whatever signal was last stored. Safe for concurrent use.
type StaticSource struct {
	total     atomic.Uint64
	available atomic.Uint64
}

// NewStaticSource creates a source reporting sig.
func NewStaticSource(sig Signal) *StaticSource {
	s := &StaticSource{}
	s.Set(sig)
	return s
}

// Set replaces the reported signal.
func (s *StaticSource) Set(sig Signal) {
	s.total.Store(sig.TotalBytes)
	s.available.Store(sig.AvailableBytes)
}

// Sample implements Source.
func (s *StaticSource) Sample() (Signal, error) {
	return Signal{TotalBytes: s.total.Load(), AvailableBytes: s.available.Load()}, nil
}

// SystemSource samples the operating system.
type SystemSource struct{}

// Sample implements Source.
func (SystemSource) Sample() (Signal, error) {
	return sampleSystem()
}
