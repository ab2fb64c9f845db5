package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
)

const (
	arMagic      = "!<arch>\n"
	arHeaderSize = 60
)

// ArMember is one entry of an archive written by WriteArchive.
type ArMember struct {
	Name string
	Data []byte
}

// EncodeArchive produces a common-format ar archive. Names are limited to
// 15 bytes; tests do not need the GNU long-name table.
func EncodeArchive(members []ArMember) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(arMagic)
	for _, m := range members {
		if len(m.Name) == 0 || len(m.Name) > 15 || strings.Contains(m.Name, "/") {
			return nil, fmt.Errorf("unsupported member name %q", m.Name)
		}
		fmt.Fprintf(&buf, "%-16s%-12d%-6d%-6d%-8o%-10d`\n", m.Name+"/", 0, 0, 0, 0o644, len(m.Data))
		buf.Write(m.Data)
		if len(m.Data)%2 == 1 {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// DecodeArchive parses an archive produced by EncodeArchive (or GNU ar for
// short names), skipping symbol-table entries.
func DecodeArchive(data []byte) ([]ArMember, error) {
	if !bytes.HasPrefix(data, []byte(arMagic)) {
		return nil, fmt.Errorf("not an ar archive")
	}
	var out []ArMember
	rest := data[len(arMagic):]
	for len(rest) > 0 {
		if len(rest) < arHeaderSize {
			return nil, fmt.Errorf("truncated header")
		}
		hdr := rest[:arHeaderSize]
		if string(hdr[58:60]) != "`\n" {
			return nil, fmt.Errorf("bad header terminator")
		}
		name := strings.TrimRight(strings.TrimSpace(string(hdr[0:16])), "/")
		size, err := strconv.Atoi(strings.TrimSpace(string(hdr[48:58])))
		if err != nil {
			return nil, fmt.Errorf("bad size: %w", err)
		}
		rest = rest[arHeaderSize:]
		if len(rest) < size {
			return nil, fmt.Errorf("truncated member %q", name)
		}
		body := append([]byte(nil), rest[:size]...)
		rest = rest[size:]
		if size%2 == 1 && len(rest) > 0 {
			rest = rest[1:]
		}
		if name == "" || archive.IsSymbolIndex(name) {
			continue
		}
		out = append(out, ArMember{Name: name, Data: body})
	}
	return out, nil
}

// WriteArchive encodes members into a file at path.
func WriteArchive(t *testing.T, path string, members ...ArMember) {
	t.Helper()
	data, err := EncodeArchive(members)
	if err != nil {
		t.Fatalf("encode archive: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

// ReadArchive decodes the archive at path.
func ReadArchive(t *testing.T, path string) []ArMember {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	members, err := DecodeArchive(data)
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	return members
}

// FakeArchiver implements archive.Archiver in-process on the format above,
// with hooks to inject failures.
type FakeArchiver struct {
	mu sync.Mutex

	// ListErr is returned by List when set.
	ListErr error
	// ExtractErr maps member names to errors returned by Extract.
	ExtractErr map[string]error
	// FailExtractFrom makes Extract fail for any archive path with this
	// suffix (for example ".bak" to break only re-extraction).
	FailExtractFrom string
	// CreateErr is returned by Create after writing nothing.
	CreateErr error
	// CreateEmpty makes Create leave a zero-byte file.
	CreateEmpty bool

	ListCalls    int
	ExtractCalls int
	CreateCalls  int
}

var _ archive.Archiver = (*FakeArchiver)(nil)

func (f *FakeArchiver) List(ctx context.Context, archivePath string) ([]archive.Member, error) {
	f.mu.Lock()
	f.ListCalls++
	f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	members, err := f.decode(archivePath)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return archive.NumberMembers(names), nil
}

func (f *FakeArchiver) Extract(ctx context.Context, archivePath string, m archive.Member, destDir string) (string, error) {
	f.mu.Lock()
	f.ExtractCalls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := f.ExtractErr[m.Name]; ok {
		return "", err
	}
	if f.FailExtractFrom != "" && strings.HasSuffix(archivePath, f.FailExtractFrom) {
		return "", fmt.Errorf("injected extraction failure for %s", m.Name)
	}

	members, err := f.decode(archivePath)
	if err != nil {
		return "", err
	}
	seen := 0
	for _, am := range members {
		if am.Name != m.Name {
			continue
		}
		seen++
		if seen != m.Occurrence {
			continue
		}
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return "", err
		}
		path := filepath.Join(destDir, am.Name)
		if err := os.WriteFile(path, am.Data, 0o644); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", archive.ErrNotExtracted, m.Name)
}

func (f *FakeArchiver) Create(ctx context.Context, archivePath string, files []string) error {
	f.mu.Lock()
	f.CreateCalls++
	f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if f.CreateEmpty {
		return os.WriteFile(archivePath, nil, 0o644)
	}
	if _, err := os.Stat(archivePath); err == nil {
		return fmt.Errorf("archive %s already exists", archivePath)
	}

	members := make([]ArMember, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		members = append(members, ArMember{Name: filepath.Base(file), Data: data})
	}
	data, err := EncodeArchive(members)
	if err != nil {
		return err
	}
	return os.WriteFile(archivePath, data, 0o644)
}

func (f *FakeArchiver) decode(path string) ([]ArMember, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeArchive(data)
}
