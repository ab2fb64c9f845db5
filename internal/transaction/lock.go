package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute
)

var ErrLockExists = errors.New("archive lock exists: another arfilter run may be in progress")

// Lock is an exclusive claim on one archive, held as a file in the state
// directory.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the lock for archivePath in stateDir.
// Uses O_CREATE|O_EXCL for atomic lock creation; a lock older than
// StaleLockThreshold is taken over once.
func AcquireLock(ctx context.Context, stateDir, archivePath string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	key, err := ArchiveKey(archivePath)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(stateDir, key+".lock")

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, fmt.Errorf("%w: %s", ErrLockExists, lockPath)
		}
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrLockExists, lockPath)
		}
	}

	if err := ctx.Err(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, err
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\narchive=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339), archivePath)
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}
	return nil
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}
