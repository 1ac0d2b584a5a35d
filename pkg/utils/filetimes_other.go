//go:build !linux && !darwin

package utils

import (
	"os"
	"time"
)

// FileTimes returns the access and modification times recorded in info.
// Platforms without a portable access time fall back to the modification
// time, which biases priority scoring toward modification age.
func FileTimes(info os.FileInfo) (atime, mtime time.Time) {
	mtime = info.ModTime()
	return mtime, mtime
}
