package filter_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/config"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/filter"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/probe"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/testutil"
)

func TestRunAllContinuesPastFailures(t *testing.T) {
	h := newHarness(t)
	good, _ := h.archive(t, "libcrypto.a", obj("a.o", arm64Obj), obj("b.o", armObj))
	allForeign, _ := h.archive(t, "libssl.a", obj("a.o", amd64Obj))

	jobs := []filter.Job{
		{Archive: good, Target: "arm64"},
		{Archive: allForeign, Target: "arm64"},
		{Archive: good, Target: "sparc"},
	}
	results, err := h.filter().RunAll(context.Background(), jobs)
	if err == nil {
		t.Fatal("RunAll() error = nil, want joined failures")
	}
	if !errors.Is(err, arch.ErrUnsupportedTarget) {
		t.Errorf("joined error lost ErrUnsupportedTarget: %v", err)
	}

	want := []filter.Status{filter.StatusSuccess, filter.StatusFailure, filter.StatusConfigError}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Status != w {
			t.Errorf("job %d status = %s, want %s", i, results[i].Status, w)
		}
	}
	if got := filter.Worst(results); got != filter.StatusConfigError {
		t.Errorf("Worst() = %s", got)
	}
}

func TestWorstAndExitCode(t *testing.T) {
	results := func(ss ...filter.Status) []*filter.Result {
		out := make([]*filter.Result, len(ss))
		for i, s := range ss {
			out[i] = &filter.Result{Status: s}
		}
		return out
	}

	tests := []struct {
		name     string
		results  []*filter.Result
		want     filter.Status
		wantCode int
	}{
		{"none", nil, filter.StatusNoOp, 0},
		{"noop and success", results(filter.StatusNoOp, filter.StatusSuccess), filter.StatusSuccess, 0},
		{"failure wins", results(filter.StatusSuccess, filter.StatusFailure, filter.StatusNoOp), filter.StatusFailure, 1},
		{"config error wins", results(filter.StatusFailure, filter.StatusConfigError), filter.StatusConfigError, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filter.Worst(tt.results)
			if got != tt.want || got.ExitCode() != tt.wantCode {
				t.Errorf("Worst() = %s (exit %d), want %s (exit %d)", got, got.ExitCode(), tt.want, tt.wantCode)
			}
		})
	}
}

func TestClassifyFiles(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	var paths []string
	for name, desc := range map[string]string{"a.o": amd64Obj, "b.o": i386Obj, "c.o": testutil.Unprobeable} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(desc), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	got, err := h.filter(filter.WithJobs(3)).ClassifyFiles(context.Background(), "x86", paths)
	if err != nil {
		t.Fatalf("ClassifyFiles() error = %v", err)
	}
	for i, r := range got {
		if r.Path != paths[i] {
			t.Errorf("result %d path = %s, want %s", i, r.Path, paths[i])
		}
		wantCompatible := filepath.Base(r.Path) != "a.o"
		if r.Classification.Compatible != wantCompatible {
			t.Errorf("%s compatible = %v, want %v", r.Path, r.Classification.Compatible, wantCompatible)
		}
	}
	if h.fake.ListCalls != 0 {
		t.Error("ClassifyFiles touched the archiver")
	}
}

func TestClassifyFilesErrors(t *testing.T) {
	h := newHarness(t)

	if _, err := h.filter().ClassifyFiles(context.Background(), "mips", nil); !errors.Is(err, arch.ErrUnsupportedTarget) {
		t.Errorf("unsupported target error = %v", err)
	}
	if _, err := h.filter().ClassifyFiles(context.Background(), "x86", []string{"/no/such.o"}); !errors.Is(err, filter.ErrObjectNotFound) {
		t.Errorf("missing object error = %v", err)
	}
	if len(h.runner.Calls()) != 0 {
		t.Error("probes ran for invalid input")
	}
}

func TestNewFromConfig(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	runner := testutil.DescribeRunner()

	cfg := config.Default()
	cfg.Tools = config.Tools{Ar: "llvm-ar", File: "/opt/file", Readelf: "llvm-readelf"}
	cfg.StateDir = env.StateDir
	cfg.Targets = []arch.Target{{
		ABI:     "riscv64",
		Bits:    64,
		Match:   []string{"risc-v"},
		Samples: []string{"ELF 64-bit LSB relocatable, UCB RISC-V, version 1 (SYSV), not stripped"},
		Aliases: []string{"rv64"},
	}}

	f, err := filter.NewFromConfig(cfg, runner, nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	if _, err := f.Registry().Lookup("rv64"); err != nil {
		t.Errorf("custom target not registered: %v", err)
	}

	obj := filepath.Join(env.Root, "x.o")
	if err := os.WriteFile(obj, []byte("ELF 64-bit LSB relocatable, UCB RISC-V, version 1 (SYSV)"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := f.ClassifyFiles(context.Background(), "rv64", []string{obj})
	if err != nil {
		t.Fatal(err)
	}
	if c := got[0].Classification; !c.Compatible || c.Outcome != probe.OutcomeMatch {
		t.Errorf("classification = %+v", c)
	}
	if calls := runner.Calls(); len(calls) != 1 || calls[0].Name != "/opt/file" {
		t.Errorf("calls = %+v, want one call to the configured file tool", calls)
	}
}
