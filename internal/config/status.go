package config

import (
	"context"
	"io"
	"os"
)

// ArchiveStatus is the on-disk state of an archive declared in the config.
type ArchiveStatus int

const (
	// StatusPresent means the path is a regular file with an ar header.
	StatusPresent ArchiveStatus = iota
	// StatusMissing means nothing exists at the path.
	StatusMissing
	// StatusNotArchive means the path exists but is not an ar archive.
	StatusNotArchive
)

// String returns the string representation of an ArchiveStatus.
func (s ArchiveStatus) String() string {
	switch s {
	case StatusPresent:
		return "present"
	case StatusMissing:
		return "missing"
	case StatusNotArchive:
		return "not-archive"
	default:
		return "unknown"
	}
}

// Symbol returns the visual symbol for an ArchiveStatus.
func (s ArchiveStatus) Symbol() string {
	switch s {
	case StatusPresent:
		return "✓"
	case StatusMissing:
		return "✗"
	default:
		return "?"
	}
}

// ArchiveWithStatus pairs a declared archive with its detected status.
type ArchiveWithStatus struct {
	Archive ArchiveSpec
	Status  ArchiveStatus
	Size    int64
}

var arMagics = []string{"!<arch>\n", "!<thin>\n"}

// DetectArchiveStatus checks each declared archive on disk. It stops on
// context cancellation.
func DetectArchiveStatus(ctx context.Context, archives []ArchiveSpec) ([]ArchiveWithStatus, error) {
	results := make([]ArchiveWithStatus, 0, len(archives))
	for _, a := range archives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := ArchiveWithStatus{Archive: a}
		info, err := os.Stat(a.Path)
		switch {
		case err != nil:
			result.Status = StatusMissing
		case !info.Mode().IsRegular() || !hasArMagic(a.Path):
			result.Status = StatusNotArchive
			result.Size = info.Size()
		default:
			result.Status = StatusPresent
			result.Size = info.Size()
		}
		results = append(results, result)
	}
	return results, nil
}

func hasArMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, len(arMagics[0]))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false
	}
	for _, m := range arMagics {
		if string(buf) == m {
			return true
		}
	}
	return false
}
