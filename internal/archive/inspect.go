package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Inspector lists an archive and extracts members one at a time into
// private subdirectories of a scratch directory.
type Inspector struct {
	archiver Archiver
	archive  string
	scratch  string
}

// NewInspector creates an inspector for archivePath. Extractions are placed
// under scratchDir, which the caller owns and removes.
func NewInspector(archiver Archiver, archivePath, scratchDir string) *Inspector {
	return &Inspector{archiver: archiver, archive: archivePath, scratch: scratchDir}
}

// Members lists the archive. An empty result is not an error.
func (i *Inspector) Members(ctx context.Context) ([]Member, error) {
	return i.archiver.List(ctx, i.archive)
}

// Extract places m in its own directory and returns the file path and a
// cleanup that removes the directory. cleanup is safe to call on error.
func (i *Inspector) Extract(ctx context.Context, m Member) (string, func(), error) {
	dir := filepath.Join(i.scratch, fmt.Sprintf("member-%04d", m.Index))
	cleanup := func() { os.RemoveAll(dir) }

	path, err := i.archiver.Extract(ctx, i.archive, m, dir)
	if err != nil {
		return "", cleanup, err
	}
	return path, cleanup, nil
}
