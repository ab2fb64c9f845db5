// Package transaction keeps archive rebuilds recoverable across crashes:
// a per-archive lock serializes runs, and a journal written before the
// archive is touched lets a later run put the backup back.
package transaction

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
)

// State represents the state of a journaled rebuild.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

const journalVersion = 1

// Entry is the on-disk record of one rebuild.
type Entry struct {
	Version   int       `json:"version"` // Schema version for future evolution
	ID        string    `json:"id"`
	Archive   string    `json:"archive"`
	Backup    string    `json:"backup"`
	Digest    string    `json:"digest"`
	State     State     `json:"state"`
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`

	file string
}

// Journal records rebuilds of one archive in a state directory. It
// implements archive.Journal.
type Journal struct {
	dir  string
	id   string
	path string
}

var _ archive.Journal = (*Journal)(nil)

// NewJournal creates a journal for an operation. An empty id gets a fresh UUID.
func NewJournal(stateDir, id string) *Journal {
	if id == "" {
		id = uuid.New().String()
	}
	return &Journal{dir: stateDir, id: id}
}

// ID returns the operation ID recorded in journal entries.
func (j *Journal) ID() string {
	return j.id
}

// Begin writes an in-progress entry for the rebuild.
func (j *Journal) Begin(archivePath, backupPath string, digest archive.Digest) error {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return fmt.Errorf("resolve archive path: %w", err)
	}
	absBackup, err := filepath.Abs(backupPath)
	if err != nil {
		return fmt.Errorf("resolve backup path: %w", err)
	}
	key, err := ArchiveKey(abs)
	if err != nil {
		return err
	}

	e := &Entry{
		Version:   journalVersion,
		ID:        j.id,
		Archive:   abs,
		Backup:    absBackup,
		Digest:    digest.String(),
		State:     StateInProgress,
		PID:       os.Getpid(),
		Timestamp: time.Now().UTC(),
	}
	path := filepath.Join(j.dir, fmt.Sprintf("txn-%s-%s.json", key, j.id))
	if err := e.save(path); err != nil {
		return err
	}
	j.path = path
	return nil
}

// End removes the entry written by Begin.
func (j *Journal) End() error {
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove journal entry: %w", err)
	}
	j.path = ""
	return nil
}

// save writes the entry atomically.
// Uses write-then-rename pattern for atomicity.
func (e *Entry) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temporary journal file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename journal file: %w", err)
	}

	// Sync directory for durability
	if df, err := os.Open(dir); err == nil {
		syncErr := df.Sync()
		df.Close()
		if syncErr != nil {
			return fmt.Errorf("sync directory: %w", syncErr)
		}
	}
	return nil
}

// Load reads a journal entry from disk.
func Load(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal file: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal journal file %s: %w", path, err)
	}
	if e.Version != journalVersion {
		return nil, fmt.Errorf("journal file %s: unsupported version %d", path, e.Version)
	}
	e.file = path
	return &e, nil
}

// ArchiveKey derives the file-name key used for an archive's lock and
// journal entries from its absolute path.
func ArchiveKey(archivePath string) (string, error) {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return "", fmt.Errorf("resolve archive path: %w", err)
	}
	sum := blake3.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:8]), nil
}
