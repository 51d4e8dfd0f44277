//go:build unix

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// OpenFile opens path with close-on-exec set, so handles never leak into child processes.
func OpenFile(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := unix.Open(path, flag|unix.O_CLOEXEC, uint32(perm.Perm()))
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}
