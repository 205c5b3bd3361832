package pressure

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/joshuapare/execalloc/internal/logger"
)

const meminfoPath = "/proc/meminfo"

// sampleSystem reports MemAvailable from /proc/meminfo, which counts
// reclaimable page cache. It falls back to sysinfo(2) free plus buffer
// memory when meminfo is unreadable or lacks MemAvailable.
func sampleSystem() (Signal, error) {
	if sig, ok := sampleMeminfo(meminfoPath); ok {
		return sig, nil
	}
	return sampleSysinfo()
}

func sampleMeminfo(path string) (Signal, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, false
	}
	defer f.Close()

	sig, ok, err := parseMeminfo(f)
	if err != nil {
		logger.L.Warn("unreadable meminfo, using sysinfo", zap.String("path", path), zap.Error(err))
		return Signal{}, false
	}
	return sig, ok
}

func sampleSysinfo() (Signal, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Signal{}, fmt.Errorf("pressure: sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return Signal{
		TotalBytes:     uint64(info.Totalram) * unit,
		AvailableBytes: (uint64(info.Freeram) + uint64(info.Bufferram)) * unit,
	}, nil
}
