package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/toolexec"
)

// Unprobeable marks object content that every fake probe fails on.
const Unprobeable = "UNPROBEABLE"

// Call records one command run through a fake runner.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// RunnerFunc adapts a function to toolexec.Runner and records calls.
type RunnerFunc struct {
	Fn func(ctx context.Context, dir, name string, args ...string) (toolexec.Result, error)

	mu    sync.Mutex
	calls []Call
}

var _ toolexec.Runner = (*RunnerFunc)(nil)

func (r *RunnerFunc) Run(ctx context.Context, dir, name string, args ...string) (toolexec.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()
	return r.Fn(ctx, dir, name, args...)
}

// Calls returns a copy of the recorded calls.
func (r *RunnerFunc) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// DescribeRunner fakes `file` and `readelf`: the description of an object
// is its own content, so tests write objects whose bytes are the probe
// output they want. Content starting with Unprobeable makes both probes
// fail. Tools listed in Missing report ErrToolNotFound.
func DescribeRunner(missing ...string) *RunnerFunc {
	gone := make(map[string]bool, len(missing))
	for _, m := range missing {
		gone[m] = true
	}
	return &RunnerFunc{Fn: func(ctx context.Context, dir, name string, args ...string) (toolexec.Result, error) {
		if gone[name] {
			return toolexec.Result{ExitCode: 127}, fmt.Errorf("%w: %s", toolexec.ErrToolNotFound, name)
		}
		if len(args) == 0 {
			return toolexec.Result{}, fmt.Errorf("no path given to %s", name)
		}
		data, err := os.ReadFile(args[len(args)-1])
		if err != nil {
			return toolexec.Result{ExitCode: 1}, &toolexec.ToolError{Tool: name, ExitCode: 1, Stderr: err.Error()}
		}
		content := string(data)
		if strings.HasPrefix(content, Unprobeable) {
			return toolexec.Result{ExitCode: 1}, &toolexec.ToolError{Tool: name, ExitCode: 1, Stderr: "not an ELF file"}
		}
		return toolexec.Result{Stdout: []byte(content + "\n")}, nil
	}}
}

// BinutilsRunner fakes the whole toolset: `ar` invocations in the forms
// archive.Tool issues are served by fake, everything else by
// DescribeRunner.
func BinutilsRunner(fake *FakeArchiver) *RunnerFunc {
	describe := DescribeRunner()
	return &RunnerFunc{Fn: func(ctx context.Context, dir, name string, args ...string) (toolexec.Result, error) {
		if filepath.Base(name) != "ar" {
			return describe.Fn(ctx, dir, name, args...)
		}
		out, err := fakeAr(ctx, fake, dir, args)
		if err != nil {
			return toolexec.Result{ExitCode: 1}, &toolexec.ToolError{Tool: name, Args: args, ExitCode: 1, Stderr: err.Error()}
		}
		return toolexec.Result{Stdout: []byte(out)}, nil
	}}
}

func fakeAr(ctx context.Context, fake *FakeArchiver, dir string, args []string) (string, error) {
	switch {
	case len(args) == 2 && args[0] == "t":
		members, err := fake.List(ctx, args[1])
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, m := range members {
			sb.WriteString(m.Name + "\n")
		}
		return sb.String(), nil
	case len(args) == 3 && args[0] == "x":
		_, err := fake.Extract(ctx, args[1], archive.Member{Name: args[2], Occurrence: 1}, dir)
		return "", err
	case len(args) == 4 && args[0] == "xN":
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("bad count %q", args[1])
		}
		_, err = fake.Extract(ctx, args[2], archive.Member{Name: args[3], Occurrence: n}, dir)
		return "", err
	case len(args) >= 3 && args[0] == "qcs":
		return "", fake.Create(ctx, args[1], args[2:])
	}
	return "", fmt.Errorf("unsupported invocation: ar %s", strings.Join(args, " "))
}
