package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// backup is a verified copy of an archive taken before it is rebuilt.
// release restores it over the archive unless commit was called, in which
// case it deletes it.
type backup struct {
	archive   string
	path      string
	digest    Digest
	size      int64
	mode      fs.FileMode
	committed bool
}

// takeBackup copies archivePath next to itself and checks that the copy
// hashes to the same digest as the original.
func takeBackup(archivePath string) (*backup, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat original: %w", err)
	}
	digest, size, err := DigestFile(archivePath)
	if err != nil {
		return nil, fmt.Errorf("hash original: %w", err)
	}

	dir, base := filepath.Split(archivePath)
	if dir == "" {
		dir = "."
	}
	dst, err := os.CreateTemp(dir, base+".*.bak")
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	b := &backup{archive: archivePath, path: dst.Name(), digest: digest, size: size, mode: info.Mode().Perm()}

	_ = dst.Chmod(b.mode)
	if err := copyInto(dst, archivePath); err != nil {
		os.Remove(b.path)
		return nil, err
	}

	got, _, err := DigestFile(b.path)
	if err != nil || got != digest {
		os.Remove(b.path)
		if err == nil {
			err = fmt.Errorf("backup digest %s does not match original %s", got, digest)
		}
		return nil, err
	}
	return b, nil
}

func (b *backup) commit() {
	b.committed = true
}

// release deletes the backup after a committed rebuild, otherwise restores it.
func (b *backup) release() error {
	if b.committed {
		if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove backup: %w", err)
		}
		return nil
	}
	return RestoreBackup(b.path, b.archive, b.digest)
}

// RestoreBackup moves backupPath over archivePath and verifies the result
// hashes to want (skipped when want is zero).
func RestoreBackup(backupPath, archivePath string, want Digest) error {
	if !want.IsZero() {
		got, _, err := DigestFile(backupPath)
		if err != nil {
			return fmt.Errorf("%w: read backup: %w", ErrRestoreFailed, err)
		}
		if got != want {
			return fmt.Errorf("%w: backup %s is corrupt (digest %s, want %s)", ErrRestoreFailed, backupPath, got, want)
		}
	}

	if err := os.Remove(archivePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove broken archive: %w", ErrRestoreFailed, err)
	}
	if err := os.Rename(backupPath, archivePath); err != nil {
		return fmt.Errorf("%w: %w", ErrRestoreFailed, err)
	}
	return nil
}

func copyInto(dst *os.File, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		dst.Close()
		return fmt.Errorf("open original: %w", err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy archive: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return fmt.Errorf("sync backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	return nil
}
