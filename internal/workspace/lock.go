package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// ErrLocked is returned when another live process holds the workspace lock.
// Callers report the contention and exit; there is no blocking wait.
var ErrLocked = errors.New("workspace is locked by another process")

// LockInfo is the record embedded in the lock file identifying the holder.
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is the exclusive ownership token for a workspace. Exactly one valid
// Lock exists per workspace at any time; Release must run on every exit path.
type Lock struct {
	path     string
	pid      int
	released bool
}

// AcquireLock takes the exclusive workspace lock. A lock file whose recorded
// owner process is no longer alive is considered stale and reclaimed; a lock
// held by a live process fails immediately with ErrLocked.
func AcquireLock(ws Workspace, logger *slog.Logger) (*Lock, error) {
	if err := os.MkdirAll(ws.Root(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	path := ws.LockPath()

	lock, err := tryCreateLock(path)
	if err == nil {
		return lock, nil
	}
	if !os.IsExist(err) {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	info, readErr := readLockInfo(path)
	if readErr == nil && processAlive(info.PID) {
		return nil, ErrLocked
	}

	// The recorded owner is gone (or the file is unreadable garbage):
	// reclaim it. A live contender can still win the race on the second
	// attempt, which is reported as ordinary contention.
	if readErr == nil {
		logger.Warn("reclaiming stale workspace lock", "path", path, "stale_pid", info.PID)
	} else {
		logger.Warn("reclaiming unreadable workspace lock", "path", path, "error", readErr)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale lock: %w", err)
	}

	lock, err = tryCreateLock(path)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	return lock, nil
}

// Release removes the lock file, but only while it still identifies this
// process as the owner. That keeps a stale holder from deleting a lock that
// was reclaimed and reassigned in the meantime. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true

	info, err := readLockInfo(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file on release: %w", err)
	}
	if info.PID != l.pid {
		// Someone else owns the lock now; leave it alone.
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func tryCreateLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hostname, _ := os.Hostname()
	info := LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}
	data = append(data, '\n')

	if _, err := file.Write(data); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write lock info: %w", err)
	}
	if err := file.Sync(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to sync lock file: %w", err)
	}

	return &Lock{path: path, pid: info.PID}, nil
}

func readLockInfo(path string) (LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LockInfo{}, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return LockInfo{}, fmt.Errorf("failed to parse lock file: %w", err)
	}
	if info.PID <= 0 {
		return LockInfo{}, fmt.Errorf("lock file records invalid pid %d", info.PID)
	}
	return info, nil
}

// processAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering anything; EPERM means the
// process exists but belongs to another user.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
