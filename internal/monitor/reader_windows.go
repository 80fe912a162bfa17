//go:build windows

package monitor

import (
	"os"

	"golang.org/x/sys/windows"
)

// statIdentity derives a stable (device, inode) analogue on Windows from
// BY_HANDLE_FILE_INFORMATION, the same handle-based identity NTFS exposes
// that mutagen's cross-platform stat layer relies on in place of POSIX
// inodes.
func statIdentity(f *os.File) (device, inode uint64) {
	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(windows.Handle(f.Fd()), &info); err != nil {
		return 0, 0
	}
	device = uint64(info.VolumeSerialNumber)
	inode = uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow)
	return device, inode
}
