package pressure

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/execalloc/internal/logger"
)

// Effort classifies how much the caller needs an allocation to succeed.
type Effort int

const (
	// EffortQuick allocations may fail; the caller can fall back to a lower tier.
	EffortQuick Effort = iota

	// EffortFull allocations must succeed unless the system is critically low.
	EffortFull
)

func (e Effort) String() string {
	switch e {
	case EffortQuick:
		return "quick"
	case EffortFull:
		return "full"
	default:
		return fmt.Sprintf("Effort(%d)", int(e))
	}
}

// Usage is the pool side of the pressure signal.
type Usage struct {
	Allocated int64
	Reserved  int64
}

// Reason says why a request was rejected.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonReserve
	ReasonSystem
	ReasonSystemCritical
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonReserve:
		return "pool reserve"
	case ReasonSystem:
		return "system memory pressure"
	case ReasonSystemCritical:
		return "system memory critical"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Accept bool
	Reason Reason
}

const (
	DefaultReservationFraction = 0.25
	DefaultThreshold           = 0.10
	DefaultCriticalThreshold   = 0.02
)

// Policy combines pool usage and a system Source.
type Policy struct {
	// ReservationFraction of the pool is withheld from quick allocations.
	ReservationFraction float64

	// Threshold is the available system memory fraction below which the
	// system counts as under pressure.
	Threshold float64

	// CriticalThreshold is the fraction below which even full-effort
	// allocations are rejected.
	CriticalThreshold float64

	// Source samples system memory. Nil means no system signal.
	Source Source
}

// DefaultPolicy returns a policy sampling the operating system.
func DefaultPolicy() Policy {
	return Policy{
		ReservationFraction: DefaultReservationFraction,
		Threshold:           DefaultThreshold,
		CriticalThreshold:   DefaultCriticalThreshold,
		Source:              SystemSource{},
	}
}

// Available returns the bytes quick allocations may use.
func (p Policy) Available(u Usage) int64 {
	return int64(float64(u.Reserved) * (1 - p.ReservationFraction))
}

// UnderPressure reports whether more than half the pool is allocated or the
// system is under memory pressure.
func (p Policy) UnderPressure(u Usage) bool {
	if u.Allocated > u.Reserved/2 {
		return true
	}
	return p.availableFraction() < p.Threshold
}

// Multiplier returns a factor of at least 1 by which callers may scale the
// cost of added bytes. It is the larger of the pool factor
// available/(available-allocated) and the system factor
// threshold/availableFraction, and never decreases as either grows tighter.
func (p Policy) Multiplier(u Usage, added int64) float64 {
	return max(p.poolFactor(u, added), p.systemFactor(p.availableFraction()))
}

// Decide accepts or rejects a request for size bytes.
func (p Policy) Decide(u Usage, size int64, effort Effort) Decision {
	frac := p.availableFraction()

	if effort == EffortFull {
		if frac < p.CriticalThreshold {
			return Decision{Reason: ReasonSystemCritical}
		}
		return Decision{Accept: true}
	}

	if frac < p.Threshold {
		return Decision{Reason: ReasonSystem}
	}
	if u.Allocated+size > p.Available(u) {
		return Decision{Reason: ReasonReserve}
	}
	return Decision{Accept: true}
}

func (p Policy) poolFactor(u Usage, added int64) float64 {
	available := p.Available(u)
	if available <= 0 {
		return 1
	}
	allocated := min(u.Allocated+added, available)
	// A full pool divides by one byte, the largest finite factor.
	divisor := max(available-allocated, 1)
	return max(float64(available)/float64(divisor), 1)
}

func (p Policy) systemFactor(frac float64) float64 {
	if frac >= p.Threshold || p.Threshold <= 0 {
		return 1
	}
	const floor = 1e-6
	return p.Threshold / max(frac, floor)
}

func (p Policy) availableFraction() float64 {
	if p.Source == nil {
		return 1
	}
	sig, err := p.Source.Sample()
	if err != nil {
		logger.L.Debug("pressure: sample failed", zap.Error(err))
		return 1
	}
	return sig.AvailableFraction()
}
