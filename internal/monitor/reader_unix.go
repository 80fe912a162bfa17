//go:build !windows

package monitor

import (
	"os"

	"golang.org/x/sys/unix"
)

// statIdentity extracts the (device, inode) pair rename inference depends
// on, by issuing an fstat directly against the open file descriptor rather
// than relying on os.FileInfo.Sys() — grounded on mutagen's extstat
// approach of reaching past the stdlib into the platform stat structure.
func statIdentity(f *os.File) (device, inode uint64) {
	var stat unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &stat); err != nil {
		return 0, 0
	}
	return uint64(stat.Dev), uint64(stat.Ino)
}
