package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned by Acquire when another live process
// holds the lock. The losing process is expected to exit cleanly with a
// success status.
var ErrAlreadyRunning = errors.New("another indexing worker is already running")

// PIDLock is the advisory singleton guard: a PID file under the index
// directory prevents two full-reindex drivers from mutating the same
// index concurrently. It is cooperative only; a process that skips the
// check is not stopped.
type PIDLock struct {
	path string
}

// NewPIDLock creates a lock backed by the PID file at path.
func NewPIDLock(path string) *PIDLock {
	return &PIDLock{path: path}
}

// Acquire takes the lock. An existing PID file referencing a live
// process yields ErrAlreadyRunning; a file referencing a dead process is
// stale and gets replaced.
func (l *PIDLock) Acquire() error {
	if pid, ok := l.readPID(); ok {
		if processAlive(pid) {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		// Stale lock from a crashed run.
		_ = os.Remove(l.path)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file. Safe to call on every termination path,
// held or not.
func (l *PIDLock) Release() {
	if pid, ok := l.readPID(); ok && pid != os.Getpid() {
		// Not ours; leave it alone.
		return
	}
	_ = os.Remove(l.path)
}

// readPID parses the recorded process id, if any.
func (l *PIDLock) readPID() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}
