package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("task file is locked")

// LockedError names the process holding the lock.
type LockedError struct {
	Path string
	PID  int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s is held by PID %d", e.Path, e.PID)
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// Lock is a pid file next to the task file that serializes
// load-mutate-save cycles across processes.
type Lock struct {
	path string
}

// NewLock returns a lock for the task file at dataPath.
func NewLock(dataPath string) *Lock {
	return &Lock{path: dataPath + ".lock"}
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Acquire creates the lock file. A lock left by a dead process, or one with
// an unreadable pid, is removed and acquisition is retried once.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	err := l.create()
	if err == nil || !os.IsExist(err) {
		return err
	}

	pid, ok := l.holder()
	if ok && processExists(pid) {
		return &LockedError{Path: l.path, PID: pid}
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale lock: %w", err)
	}

	if err := l.create(); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock taken by another process during retry: %w", ErrLocked)
		}
		return err
	}
	return nil
}

func (l *Lock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("create lock file: %w", err)
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("write lock file: %w", writeErr)
	}
	return nil
}

// holder returns the pid recorded in the lock file.
func (l *Lock) holder() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// Release removes the lock file. Releasing twice is not an error.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// IsLocked reports whether a live process holds the lock.
func (l *Lock) IsLocked() bool {
	pid, ok := l.holder()
	return ok && processExists(pid)
}

// processExists sends signal 0, which checks for the process without
// delivering anything.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
