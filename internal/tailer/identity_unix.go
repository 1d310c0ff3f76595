//go:build !windows

package tailer

import (
	"os"
	"syscall"
)

// fileIdentity extracts the device and inode from FileInfo
func fileIdentity(fi os.FileInfo) (uint64, uint64) {
	if stat, ok := fi.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Dev), uint64(stat.Ino)
	}
	return 0, 0
}
