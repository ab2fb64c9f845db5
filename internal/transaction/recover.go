package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
)

// Recovery reports what was done for one orphaned journal entry.
type Recovery struct {
	ID       string `json:"id" yaml:"id" toml:"id"`
	Archive  string `json:"archive" yaml:"archive" toml:"archive"`
	Backup   string `json:"backup" yaml:"backup" toml:"backup"`
	Restored bool   `json:"restored" yaml:"restored" toml:"restored"`
	Note     string `json:"note" yaml:"note" toml:"note"`
}

// Orphans returns the in-progress journal entries for archivePath, oldest
// first. Entries are only orphans if no run holds the archive lock, so
// callers must hold it.
func Orphans(stateDir, archivePath string) ([]*Entry, error) {
	key, err := ArchiveKey(archivePath)
	if err != nil {
		return nil, err
	}
	return scan(filepath.Join(stateDir, "txn-"+key+"-*.json"))
}

// AllOrphans returns every in-progress journal entry in stateDir.
func AllOrphans(stateDir string) ([]*Entry, error) {
	return scan(filepath.Join(stateDir, "txn-*.json"))
}

func scan(pattern string) ([]*Entry, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	var entries []*Entry
	for _, p := range paths {
		e, err := Load(p)
		if err != nil {
			return nil, err
		}
		if e.State == StateInProgress {
			entries = append(entries, e)
		}
	}
	slices.SortStableFunc(entries, func(a, b *Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return entries, nil
}

// Recover puts back the backups of orphaned rebuilds of archivePath and
// removes their journal entries. The caller must hold the archive lock.
//
// An entry whose backup is gone belongs to a rebuild that committed before
// the journal could be closed; only the entry is removed.
func Recover(ctx context.Context, stateDir, archivePath string) ([]Recovery, error) {
	entries, err := Orphans(stateDir, archivePath)
	if err != nil {
		return nil, err
	}
	return recoverEntries(ctx, entries)
}

// RecoverAll recovers every orphaned entry in stateDir, taking each
// archive's lock in turn. Archives locked by a live run are skipped with
// ErrLockExists joined into the returned error.
func RecoverAll(ctx context.Context, stateDir string) ([]Recovery, error) {
	entries, err := AllOrphans(stateDir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Recovery
	var errs []error
	for _, e := range entries {
		if seen[e.Archive] {
			continue
		}
		seen[e.Archive] = true

		lock, err := AcquireLock(ctx, stateDir, e.Archive)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Archive, err))
			continue
		}
		recs, err := Recover(ctx, stateDir, e.Archive)
		lock.Release()
		out = append(out, recs...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

func recoverEntries(ctx context.Context, entries []*Entry) ([]Recovery, error) {
	var out []Recovery
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		rec := Recovery{ID: e.ID, Archive: e.Archive, Backup: e.Backup}
		if _, err := os.Stat(e.Backup); os.IsNotExist(err) {
			rec.Note = "backup already removed; rebuild had completed"
		} else {
			digest, err := archive.ParseDigest(e.Digest)
			if err != nil {
				return out, fmt.Errorf("journal %s: %w", e.ID, err)
			}
			if err := archive.RestoreBackup(e.Backup, e.Archive, digest); err != nil {
				return out, fmt.Errorf("recover %s: %w", e.Archive, err)
			}
			rec.Restored = true
			rec.Note = "original archive restored from backup"
		}

		if err := os.Remove(e.file); err != nil && !os.IsNotExist(err) {
			return out, fmt.Errorf("remove journal entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
