//go:build unix && !linux

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

func Datasync(file *os.File) error {
	return unix.Fsync(int(file.Fd()))
}
