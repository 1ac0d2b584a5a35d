//go:build darwin

package utils

import (
	"os"
	"syscall"
	"time"
)

// FileTimes returns the access and modification times recorded in info.
func FileTimes(info os.FileInfo) (atime, mtime time.Time) {
	mtime = info.ModTime()
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		atime = time.Unix(st.Atimespec.Sec, st.Atimespec.Nsec)
	} else {
		atime = mtime
	}
	return atime, mtime
}
