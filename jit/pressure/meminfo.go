package pressure

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseMeminfo reads MemTotal and MemAvailable from /proc/meminfo content.
// ok is false when either field is missing; kernels before 3.14 lack
// MemAvailable.
func parseMeminfo(r io.Reader) (sig Signal, ok bool, err error) {
	var haveTotal, haveAvail bool
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, rest, found := strings.Cut(sc.Text(), ":")
		if !found || (name != "MemTotal" && name != "MemAvailable") {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return Signal{}, false, fmt.Errorf("pressure: meminfo %s has no value", name)
		}
		n, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return Signal{}, false, fmt.Errorf("pressure: meminfo %s: %w", name, err)
		}
		if len(fields) > 1 && fields[1] == "kB" {
			n *= 1024
		}
		switch name {
		case "MemTotal":
			sig.TotalBytes, haveTotal = n, true
		case "MemAvailable":
			sig.AvailableBytes, haveAvail = n, true
		}
	}
	if err := sc.Err(); err != nil {
		return Signal{}, false, fmt.Errorf("pressure: read meminfo: %w", err)
	}
	return sig, haveTotal && haveAvail, nil
}
