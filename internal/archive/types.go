// Package archive lists, extracts and rebuilds static library archives.
//
// # Components
//
//   - Archiver: the container operations (list, extract one member, create),
//     implemented by Tool on top of the system ar.
//   - Inspector: lists members and extracts each into its own scratch
//     directory so members with colliding names never overwrite each other.
//   - Rebuilder: replaces the archive with a subset of its members behind a
//     verified backup that is restored on any failure.
//
// Member bytes are never transformed; the symbol index is regenerated by ar.
package archive

import (
	"context"
	"errors"
)

var (
	ErrNotExtracted  = errors.New("member extraction produced no file")
	ErrUnsafeMember  = errors.New("unsafe member name")
	ErrNothingToKeep = errors.New("no compatible members to keep")
	ErrBackupFailed  = errors.New("archive backup failed")
	ErrRebuildFailed = errors.New("archive rebuild failed")
	ErrRestoreFailed = errors.New("archive restore failed")
)

// Member identifies one entry of an archive.
type Member struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Index is the 0-based position in the archive listing.
	Index int `json:"index" yaml:"index" toml:"index"`
	// Occurrence is the 1-based count of this name up to and including
	// this entry; it addresses duplicates (ar xN).
	Occurrence int `json:"occurrence" yaml:"occurrence" toml:"occurrence"`
}

// Archiver performs container-level operations on an archive file.
type Archiver interface {
	// List returns the archive's members in order, duplicates included.
	List(ctx context.Context, archivePath string) ([]Member, error)

	// Extract writes one member into destDir, creating it if needed, and
	// returns the path of the extracted file.
	Extract(ctx context.Context, archivePath string, m Member, destDir string) (string, error)

	// Create writes a new archive containing files in order, with a
	// symbol index. Member names are the files' base names.
	Create(ctx context.Context, archivePath string, files []string) error
}

// NumberMembers assigns Index and Occurrence to a raw name listing.
func NumberMembers(names []string) []Member {
	seen := make(map[string]int, len(names))
	members := make([]Member, 0, len(names))
	for i, name := range names {
		seen[name]++
		members = append(members, Member{Name: name, Index: i, Occurrence: seen[name]})
	}
	return members
}

// symbolIndexNames are pseudo members holding the archive symbol table.
// They are regenerated on rebuild and never treated as object members.
var symbolIndexNames = map[string]bool{
	"/":                true,
	"//":               true,
	"/SYM64/":          true,
	"__.SYMDEF":        true,
	"__.SYMDEF SORTED": true,
	"__.SYMDEF_64":     true,
}

// IsSymbolIndex reports whether name is an archive symbol-table pseudo member.
func IsSymbolIndex(name string) bool {
	return symbolIndexNames[name]
}
