//go:build unix

package storage

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func lockShared(f *os.File) error {
	return flock(f, unix.LOCK_SH)
}

func lockExclusive(f *os.File) error {
	return flock(f, unix.LOCK_EX)
}

func unlock(f *os.File) {
	_ = flock(f, unix.LOCK_UN)
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
