package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/logging"
)

// Journal records an in-flight rebuild so that an interrupted run can be
// recovered later. Begin is called once the backup exists and before the
// archive is touched; End after the archive is settled either way.
type Journal interface {
	Begin(archivePath, backupPath string, digest Digest) error
	End() error
}

// RebuildResult describes a completed rebuild.
type RebuildResult struct {
	Kept         int
	Skipped      []Member // compatible members that could not be re-extracted
	SizeBefore   int64
	SizeAfter    int64
	DigestBefore Digest
	DigestAfter  Digest
}

// Rebuilder replaces an archive with a subset of its members.
type Rebuilder struct {
	archiver Archiver
	journal  Journal
	log      logging.Logger
}

// RebuilderOption configures a Rebuilder.
type RebuilderOption func(*Rebuilder)

// WithJournal records each rebuild in j.
func WithJournal(j Journal) RebuilderOption {
	return func(r *Rebuilder) { r.journal = j }
}

// WithLogger sets the logger for rebuild diagnostics.
func WithLogger(l logging.Logger) RebuilderOption {
	return func(r *Rebuilder) { r.log = l }
}

// NewRebuilder creates a Rebuilder.
func NewRebuilder(archiver Archiver, opts ...RebuilderOption) *Rebuilder {
	r := &Rebuilder{archiver: archiver, log: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rebuild rewrites archivePath so it contains exactly the keep members, in
// order, with their original bytes. workDir must be a private scratch
// directory.
//
// The original is copied to a verified backup first and members are
// re-extracted from that backup. If anything fails after the backup is
// taken, or the new archive is missing or empty, the backup is moved back
// and the archive is byte-identical to how it started. An empty keep list
// is refused before anything is touched.
func (r *Rebuilder) Rebuild(ctx context.Context, archivePath string, keep []Member, workDir string) (res *RebuildResult, err error) {
	if len(keep) == 0 {
		return nil, ErrNothingToKeep
	}

	b, err := takeBackup(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}
	if r.journal != nil {
		if jerr := r.journal.Begin(archivePath, b.path, b.digest); jerr != nil {
			os.Remove(b.path)
			return nil, fmt.Errorf("%w: record journal: %w", ErrBackupFailed, jerr)
		}
	}

	defer func() {
		relErr := b.release()
		switch {
		case err != nil && relErr != nil:
			r.log.Error("restore failed, backup kept for recovery", "archive", archivePath, "backup", b.path, "error", relErr)
			err = errors.Join(err, relErr)
			return
		case err != nil:
			r.log.Warn("rebuild failed, original archive preserved", "archive", archivePath, "error", err)
		case relErr != nil:
			r.log.Warn("could not remove backup", "backup", b.path, "error", relErr)
		}
		if r.journal != nil {
			if jerr := r.journal.End(); jerr != nil {
				r.log.Warn("could not close journal", "archive", archivePath, "error", jerr)
			}
		}
	}()

	rebuildDir := filepath.Join(workDir, "rebuild")
	if err := os.RemoveAll(rebuildDir); err != nil {
		return nil, fmt.Errorf("%w: clean rebuild dir: %w", ErrRebuildFailed, err)
	}
	if err := os.MkdirAll(rebuildDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create rebuild dir: %w", ErrRebuildFailed, err)
	}

	res = &RebuildResult{SizeBefore: b.size, DigestBefore: b.digest}

	files := make([]string, 0, len(keep))
	for i, m := range keep {
		dest := filepath.Join(rebuildDir, fmt.Sprintf("%04d", i))
		path, xerr := r.archiver.Extract(ctx, b.path, m, dest)
		if xerr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrRebuildFailed, ctxErr)
			}
			r.log.Warn("skipping member that could not be re-extracted", "member", m.Name, "index", m.Index, "error", xerr)
			res.Skipped = append(res.Skipped, m)
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no member could be re-extracted", ErrRebuildFailed)
	}

	if err := os.Remove(archivePath); err != nil {
		return nil, fmt.Errorf("%w: remove original: %w", ErrRebuildFailed, err)
	}
	if err := r.archiver.Create(ctx, archivePath, files); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}
	// ar creates the file with the process umask.
	if err := os.Chmod(archivePath, b.mode); err != nil {
		return nil, fmt.Errorf("%w: restore mode: %w", ErrRebuildFailed, err)
	}

	digest, size, derr := DigestFile(archivePath)
	if derr != nil {
		return nil, fmt.Errorf("%w: verify: %w", ErrRebuildFailed, derr)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: verify: new archive is empty", ErrRebuildFailed)
	}

	res.Kept = len(files)
	res.SizeAfter = size
	res.DigestAfter = digest
	b.commit()
	return res, nil
}
