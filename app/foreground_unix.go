//go:build linux || darwin

package app

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Foreground reports whether this process owns the controlling terminal. A
// job moved to the background (Ctrl-Z, bg) reads false. Without a terminal
// the process counts as foreground.
func Foreground() (bool, error) {
	pgrp, err := unix.IoctlGetInt(int(os.Stdin.Fd()), unix.TIOCGPGRP)
	if err != nil {
		if errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EBADF) {
			return true, nil
		}
		return true, err
	}
	return pgrp == unix.Getpgrp(), nil
}
