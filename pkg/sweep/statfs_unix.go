//go:build linux || darwin

package sweep

import "golang.org/x/sys/unix"

// freeBytes reports the bytes available to unprivileged processes on the
// filesystem containing path. The before/after difference around a run is
// an estimate; other writers share the filesystem.
func freeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
