// Package lockfile implements the single cross-process exclusion guard:
// one lockfile per user id under the system temp directory, preventing
// two emulator processes from sharing a serial adapter.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Error wraps a lockfile-layer failure.
type Error struct {
	msg string
	err error
}

func (e Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}
func (e Error) Unwrap() error { return e.err }

// ErrAlreadyLocked is returned by Acquire when another process already
// holds the lock.
var ErrAlreadyLocked = Error{msg: "another instance is already running"}

// Lock represents a held lockfile; Release must be called exactly once
// to hand it back.
type Lock struct {
	f    *os.File
	path string
}

// dir returns the path $TMPDIR/sio2go.<uid>; it does not create the
// directory (Acquire does).
func dir() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("sio2go.%d", os.Getuid()))
}

// Acquire creates (if needed) the per-uid temp directory and takes an
// exclusive, non-blocking lock on sio2go.lock within it. It returns
// ErrAlreadyLocked if another process holds the lock.
func Acquire() (*Lock, error) {
	d := dir()
	if err := os.MkdirAll(d, 0o700); err != nil {
		return nil, Error{msg: "lockfile: mkdir", err: err}
	}
	path := filepath.Join(d, "sio2go.lock")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, Error{msg: "lockfile: open", err: err}
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrAlreadyLocked
		}
		return nil, Error{msg: "lockfile: flock", err: err}
	}

	_ = f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	return &Lock{f: f, path: path}, nil
}

// Release unlocks and removes the lockfile, completing orderly shutdown.
func (l *Lock) Release() error {
	syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	if rerr := os.Remove(l.path); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
