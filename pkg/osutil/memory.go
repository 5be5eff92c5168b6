package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// Value reported by cgroup v1 when no memory limit is configured
const unrestrictedMemoryLimit = 9223372036854771712

var memoryLimitLocations = []string{
	"/sys/fs/cgroup/memory.max",                   // cgroup v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // cgroup v1
}

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	totalMemory := memory.TotalMemory()

	for _, location := range memoryLimitLocations {
		if limit, ok := readMemoryLimit(location); ok {
			return limit
		}
	}
	return totalMemory
}

func readMemoryLimit(location string) (uint64, bool) {
	raw, err := os.ReadFile(location)
	if err != nil {
		return 0, false
	}

	value := strings.TrimSpace(string(raw))
	if value == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil || limit == 0 || limit == unrestrictedMemoryLimit {
		return 0, false
	}
	return limit, true
}
