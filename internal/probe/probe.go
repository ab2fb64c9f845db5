// Package probe identifies the CPU architecture of extracted object files
// by asking external tools to describe them and matching the descriptions
// against an arch.Target.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/toolexec"
)

// ErrUnavailable means a probe could not produce a usable description.
var ErrUnavailable = errors.New("probe unavailable")

// Probe describes an object file. Implementations return an error wrapping
// ErrUnavailable when the tool is missing, fails, or prints nothing.
type Probe interface {
	Name() string
	Describe(ctx context.Context, path string) (string, error)
}

// FileProbe runs `file -b`, which names the architecture for ELF and
// Mach-O objects without echoing the path.
type FileProbe struct {
	tool   string
	runner toolexec.Runner
}

// NewFileProbe creates a probe using the file binary at tool.
func NewFileProbe(tool string, runner toolexec.Runner) *FileProbe {
	if tool == "" {
		tool = "file"
	}
	return &FileProbe{tool: tool, runner: runner}
}

func (p *FileProbe) Name() string { return "file" }

func (p *FileProbe) Describe(ctx context.Context, path string) (string, error) {
	res, err := p.runner.Run(ctx, "", p.tool, "-b", path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, p.Name(), err)
	}
	return clean(string(res.Stdout), path, p.Name())
}

// ReadelfProbe runs `readelf -h` and keeps the ELF header lines.
type ReadelfProbe struct {
	tool   string
	runner toolexec.Runner
}

// NewReadelfProbe creates a probe using the readelf binary at tool.
func NewReadelfProbe(tool string, runner toolexec.Runner) *ReadelfProbe {
	if tool == "" {
		tool = "readelf"
	}
	return &ReadelfProbe{tool: tool, runner: runner}
}

func (p *ReadelfProbe) Name() string { return "readelf" }

func (p *ReadelfProbe) Describe(ctx context.Context, path string) (string, error) {
	res, err := p.runner.Run(ctx, "", p.tool, "-h", path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, p.Name(), err)
	}
	return clean(string(res.Stdout), path, p.Name())
}

// clean drops "File:" header lines and any mention of path so the
// description depends only on the object's content.
func clean(out, path, probe string) (string, error) {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "File:") {
			continue
		}
		if path != "" {
			line = strings.TrimSpace(strings.ReplaceAll(line, path, ""))
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("%w: %s: empty output", ErrUnavailable, probe)
	}
	return strings.Join(lines, "\n"), nil
}

// Tools names the probe binaries.
type Tools struct {
	File    string
	Readelf string
}

// DefaultProbes returns the file probe followed by the readelf probe.
func DefaultProbes(runner toolexec.Runner, tools Tools) []Probe {
	return []Probe{
		NewFileProbe(tools.File, runner),
		NewReadelfProbe(tools.Readelf, runner),
	}
}
