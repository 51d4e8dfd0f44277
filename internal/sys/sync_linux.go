//go:build linux

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// Datasync flushes file data, skipping metadata that is not needed to read it back.
func Datasync(file *os.File) error {
	return unix.Fdatasync(int(file.Fd()))
}
