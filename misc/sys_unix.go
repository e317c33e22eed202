//go:build darwin || linux

package misc

import "golang.org/x/sys/unix"

// GetDiskUsageKB returns used, free, and total space in KiB of the file system that contains
// path. Returns all zeroes if the path cannot be statfs'd.
func GetDiskUsageKB(path string) (usedKB, freeKB, totalKB int) {
	fs := unix.Statfs_t{}
	if err := unix.Statfs(path, &fs); err != nil {
		return
	}
	totalKB = int(uint64(fs.Blocks) * uint64(fs.Bsize) / 1024)
	freeKB = int(uint64(fs.Bfree) * uint64(fs.Bsize) / 1024)
	usedKB = totalKB - freeKB
	return
}

// GetRootDiskUsageKB returns used, free, and total space of the file system mounted on /.
func GetRootDiskUsageKB() (usedKB, freeKB, totalKB int) {
	return GetDiskUsageKB("/")
}
