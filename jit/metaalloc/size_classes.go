package metaalloc

import (
	"math"
	"slices"
	"strings"
)

// SizeClassConfig defines the segregated free-list layout.
// Different configurations trade heap size against scan length.
type SizeClassConfig struct {
	// Name for this configuration (for dumps and benchmarks)
	Name string

	// Small ranges use linear increments
	SmallMin       int // Smallest range size (the granule)
	SmallMax       int // Upper end of the linear classes
	SmallIncrement int // Step between linear classes

	// Medium ranges grow geometrically up to MediumMax. Anything larger goes
	// to the large heap. Zero means the engine's large-allocation threshold.
	MediumMax    int
	GrowthFactor float64
}

// Predefined configurations.
var (
	// ConfigFine keeps one class per granule up to 1KB. Suits engines that
	// mostly hand out small stubs and inline caches.
	ConfigFine = SizeClassConfig{
		Name:           "Fine",
		SmallMin:       DefaultGranule,
		SmallMax:       1024,
		SmallIncrement: DefaultGranule,
		GrowthFactor:   1.5,
	}

	// ConfigBalanced has one class per granule up to 512 bytes, then doubles.
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       DefaultGranule,
		SmallMax:       512,
		SmallIncrement: DefaultGranule,
		GrowthFactor:   2.0,
	}

	// ConfigCoarse has few classes; faster release, longer in-class scans.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       DefaultGranule,
		SmallMax:       256,
		SmallIncrement: 4 * DefaultGranule,
		GrowthFactor:   4.0,
	}

	// DefaultSizeClasses is used when Config.SizeClasses is nil.
	DefaultSizeClasses = ConfigBalanced
)

// sizeClassTable maps a range size to its free-list index. Class i holds
// sizes in (bounds[i-1], bounds[i]]; len(bounds) is the large heap.
type sizeClassTable struct {
	name   string
	bounds []int
}

func newSizeClassTable(c SizeClassConfig) *sizeClassTable {
	t := &sizeClassTable{name: c.Name}
	for lo := c.SmallMin; lo < c.SmallMax; lo += c.SmallIncrement {
		t.bounds = append(t.bounds, lo+c.SmallIncrement-1)
	}
	for lo := c.SmallMax; lo < c.MediumMax; {
		hi := max(int(math.Ceil(float64(lo)*c.GrowthFactor)), lo+1)
		t.bounds = append(t.bounds, hi-1)
		lo = hi
	}
	return t
}

// getSizeClass returns the class index for size, or NumClasses for the
// large heap.
func (t *sizeClassTable) getSizeClass(size int) int {
	i, _ := slices.BinarySearch(t.bounds, size)
	return i
}

func (t *sizeClassTable) String() string { return t.name }

// NumClasses returns the number of classes, excluding the large heap.
func (t *sizeClassTable) NumClasses() int { return len(t.bounds) }

// SizeClassesByName returns the predefined configuration with the given
// case-insensitive name.
func SizeClassesByName(name string) (SizeClassConfig, bool) {
	for _, c := range []SizeClassConfig{ConfigFine, ConfigBalanced, ConfigCoarse} {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return SizeClassConfig{}, false
}
