//go:build !linux && !darwin

package monitor

import (
	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
)

// GetDiskUsage is not implemented on this platform
func GetDiskUsage(path string) (types.DiskUsage, error) {
	return types.DiskUsage{}, errors.NewError(errors.ErrCodeInternalError,
		"disk usage queries are not supported on this platform").
		WithComponent("monitor").
		WithPath(path)
}
