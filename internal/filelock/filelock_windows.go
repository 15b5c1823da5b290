//go:build windows

package filelock

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

const (
	retryInterval = 2 * time.Millisecond
	// Lock the whole file range.
	rangeLow  = ^uint32(0)
	rangeHigh = ^uint32(0)
)

// tryLock makes one non-blocking attempt. A blocking LockFileEx would pin
// the OS thread, so lockFile polls instead.
func tryLock(f *os.File) (bool, error) {
	err := windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, rangeLow, rangeHigh, new(windows.Overlapped))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, windows.ERROR_LOCK_VIOLATION):
		return false, nil
	default:
		return false, err
	}
}

func lockFile(f *os.File) error {
	for {
		ok, err := tryLock(f)
		if err != nil || ok {
			return err
		}
		time.Sleep(retryInterval)
	}
}

func unlockFile(f *os.File) error {
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, rangeLow, rangeHigh, new(windows.Overlapped))
}
