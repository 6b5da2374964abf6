//go:build unix

package runner

import (
	"os"

	"golang.org/x/sys/unix"
)

// pollable returns a non-blocking duplicate of file. Reads on the duplicate
// go through the runtime poller, so closing it interrupts a pending Read.
func pollable(file *os.File) (*os.File, error) {
	fd, err := unix.Dup(int(file.Fd()))
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return os.NewFile(uintptr(fd), file.Name()), nil
}
