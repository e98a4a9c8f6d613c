package pcl

import "syscall"

// diskFreeBytes reports bytes available to an unprivileged user on the
// filesystem backing path, via statfs(2).
func diskFreeBytes(path string) int64 {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0
	}
	return int64(st.Bavail) * int64(st.Bsize)
}
