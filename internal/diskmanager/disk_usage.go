// disk_usage.go disk usage via gopsutil
package diskmanager

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// GetDiskUsage returns the usage percentage of the filesystem containing
// the given path.
func GetDiskUsage(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get disk stats for %s: %w", path, err)
	}
	return usage.UsedPercent, nil
}
