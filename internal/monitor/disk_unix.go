//go:build linux || darwin

package monitor

import (
	"golang.org/x/sys/unix"

	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
)

// GetDiskUsage reports filesystem capacity for the path. Used percent is
// computed against blocks available to unprivileged callers, matching
// what df reports.
func GetDiskUsage(path string) (types.DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return types.DiskUsage{}, errors.NewIOError("failed to query disk usage", err).
			WithComponent("monitor").
			WithPath(path)
	}

	blockSize := uint64(stat.Bsize)
	total := stat.Blocks * blockSize
	free := stat.Bfree * blockSize
	avail := uint64(stat.Bavail) * blockSize
	used := total - free

	usage := types.DiskUsage{
		TotalBytes: total,
		UsedBytes:  used,
		FreeBytes:  free,
	}
	if used+avail > 0 {
		usage.UsedPercent = float64(used) / float64(used+avail) * 100
	}

	return usage, nil
}
