package archive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/toolexec"
)

// Tool implements Archiver with a system ar (GNU ar or llvm-ar).
type Tool struct {
	ar     string
	runner toolexec.Runner
}

// NewTool creates an Archiver that invokes the ar binary at arPath.
func NewTool(arPath string, runner toolexec.Runner) *Tool {
	if arPath == "" {
		arPath = "ar"
	}
	return &Tool{ar: arPath, runner: runner}
}

// List runs `ar t`.
func (t *Tool) List(ctx context.Context, archivePath string) ([]Member, error) {
	res, err := t.runner.Run(ctx, "", t.ar, "t", archivePath)
	if err != nil {
		return nil, fmt.Errorf("list archive members: %w", err)
	}

	var names []string
	sc := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" || IsSymbolIndex(name) {
			continue
		}
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read member listing: %w", err)
	}
	return NumberMembers(names), nil
}

// Extract runs `ar x` (or `ar xN <n>` for a repeated name) inside destDir.
func (t *Tool) Extract(ctx context.Context, archivePath string, m Member, destDir string) (string, error) {
	if err := checkMemberName(m.Name); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return "", fmt.Errorf("resolve archive path: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}

	args := []string{"x", abs, m.Name}
	if m.Occurrence > 1 {
		args = []string{"xN", strconv.Itoa(m.Occurrence), abs, m.Name}
	}
	if _, err := t.runner.Run(ctx, destDir, t.ar, args...); err != nil {
		return "", fmt.Errorf("extract %s: %w", m.Name, err)
	}

	return findExtracted(destDir, m.Name)
}

// Create runs `ar qcs`. Quick append keeps duplicate member names that
// `ar r` would collapse; the archive must not already exist.
func (t *Tool) Create(ctx context.Context, archivePath string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("create archive: no members")
	}
	args := append([]string{"qcs", archivePath}, files...)
	if _, err := t.runner.Run(ctx, "", t.ar, args...); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}

// checkMemberName rejects names that could escape the extraction directory.
func checkMemberName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrUnsafeMember, name)
	}
	return nil
}

// findExtracted returns the single regular file ar left in dir.
func findExtracted(dir, name string) (string, error) {
	want := filepath.Join(dir, name)
	if info, err := os.Lstat(want); err == nil && info.Mode().IsRegular() {
		return want, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read extraction dir: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotExtracted, name)
}
