package executable

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/execalloc/jit/metaalloc"
	"github.com/joshuapare/execalloc/jit/pressure"
	"github.com/joshuapare/execalloc/jit/protect"
)

// Config configures an Allocator. Zero values fall back to Default.
type Config struct {
	// PoolSize is the size of the fixed pool in bytes.
	PoolSize int `toml:"pool_size" json:"pool_size"`

	// WriteMode selects the write strategy: auto, fast, separate, mprotect, none.
	WriteMode string `toml:"write_mode" json:"write_mode"`

	// SizeClasses names the free-list layout: fine, balanced, coarse.
	SizeClasses string `toml:"size_classes" json:"size_classes"`

	// ReservationFraction of the pool is withheld from quick allocations.
	ReservationFraction float64 `toml:"reservation_fraction" json:"reservation_fraction"`

	// SystemPressureThreshold is the available memory fraction below which
	// quick allocations are rejected.
	SystemPressureThreshold float64 `toml:"system_pressure_threshold" json:"system_pressure_threshold"`

	// CriticalPressureThreshold is the fraction below which every allocation
	// is rejected.
	CriticalPressureThreshold float64 `toml:"critical_pressure_threshold" json:"critical_pressure_threshold"`

	// AllocationFuzzEvery fails every Nth quick allocation. Zero disables it.
	AllocationFuzzEvery int `toml:"allocation_fuzz_every" json:"allocation_fuzz_every"`

	// LogAllocations enables per-allocation debug logging. The
	// EXECALLOC_LOG_ALLOC environment variable enables it as well.
	LogAllocations bool `toml:"log_allocations" json:"log_allocations"`

	// PressureSource overrides the system memory signal.
	PressureSource pressure.Source `toml:"-" json:"-"`

	// SeparateHeapWriter overrides the process-wide writer registered with
	// SetSeparateHeapWriter for this allocator.
	SeparateHeapWriter protect.SeparateHeapFunc `toml:"-" json:"-"`

	// Reserve overrides pool reservation.
	Reserve protect.ReserveFunc `toml:"-" json:"-"`
}

// DefaultPoolSize is 64MB on 64-bit targets and 16MB on 32-bit targets.
const DefaultPoolSize = 16 << 20 << (2 * (bits.UintSize/32 - 1))

// Default returns the default configuration.
func Default() Config {
	return Config{
		PoolSize:                  DefaultPoolSize,
		WriteMode:                 string(protect.ModeAuto),
		SizeClasses:               metaalloc.DefaultSizeClasses.Name,
		ReservationFraction:       pressure.DefaultReservationFraction,
		SystemPressureThreshold:   pressure.DefaultThreshold,
		CriticalPressureThreshold: pressure.DefaultCriticalThreshold,
	}
}

// withDefaults fills zero fields from Default.
func (c Config) withDefaults() Config {
	d := Default()
	if c.PoolSize == 0 {
		c.PoolSize = d.PoolSize
	}
	if c.WriteMode == "" {
		c.WriteMode = d.WriteMode
	}
	if c.SizeClasses == "" {
		c.SizeClasses = d.SizeClasses
	}
	if c.ReservationFraction == 0 {
		c.ReservationFraction = d.ReservationFraction
	}
	if c.SystemPressureThreshold == 0 {
		c.SystemPressureThreshold = d.SystemPressureThreshold
	}
	if c.CriticalPressureThreshold == 0 {
		c.CriticalPressureThreshold = d.CriticalPressureThreshold
	}
	return c
}

// Validate reports the first unusable field.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.PoolSize < 0 {
		return fmt.Errorf("executable: pool_size must be positive, got %d", c.PoolSize)
	}
	if _, err := protect.ParseMode(c.WriteMode); err != nil {
		return err
	}
	if _, ok := metaalloc.SizeClassesByName(c.SizeClasses); !ok {
		return fmt.Errorf("executable: unknown size_classes %q", c.SizeClasses)
	}
	if c.ReservationFraction < 0 || c.ReservationFraction >= 1 {
		return fmt.Errorf("executable: reservation_fraction must be in [0,1), got %g", c.ReservationFraction)
	}
	if c.SystemPressureThreshold < 0 || c.SystemPressureThreshold > 1 {
		return fmt.Errorf("executable: system_pressure_threshold must be in [0,1], got %g", c.SystemPressureThreshold)
	}
	if c.CriticalPressureThreshold < 0 || c.CriticalPressureThreshold > c.SystemPressureThreshold {
		return fmt.Errorf("executable: critical_pressure_threshold must be in [0,%g], got %g",
			c.SystemPressureThreshold, c.CriticalPressureThreshold)
	}
	if c.AllocationFuzzEvery < 0 {
		return fmt.Errorf("executable: allocation_fuzz_every must not be negative, got %d", c.AllocationFuzzEvery)
	}
	return nil
}

func (c Config) policy() pressure.Policy {
	p := pressure.DefaultPolicy()
	p.ReservationFraction = c.ReservationFraction
	p.Threshold = c.SystemPressureThreshold
	p.CriticalThreshold = c.CriticalPressureThreshold
	if c.PressureSource != nil {
		p.Source = c.PressureSource
	}
	return p
}
