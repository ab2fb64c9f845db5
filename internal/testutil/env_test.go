package testutil_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/testutil"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/toolexec"
)

func TestSetupTestEnv(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	if got := os.Getenv("ARFILTER_STATE_DIR"); got != env.StateDir {
		t.Errorf("ARFILTER_STATE_DIR = %q, want %q", got, env.StateDir)
	}
	if got := os.Getenv("ARFILTER_LOG_LEVEL"); got != "off" {
		t.Errorf("ARFILTER_LOG_LEVEL = %q, want off", got)
	}

	for _, dir := range []string{env.StateDir, env.WorkDir, env.LibDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestArchiveCodec(t *testing.T) {
	members := []testutil.ArMember{
		{Name: "a.o", Data: []byte("odd")},
		{Name: "b.o", Data: []byte("even")},
		{Name: "a.o", Data: []byte("second a")},
	}

	data, err := testutil.EncodeArchive(members)
	if err != nil {
		t.Fatalf("EncodeArchive() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("!<arch>\n")) {
		t.Fatal("missing ar magic")
	}

	got, err := testutil.DecodeArchive(data)
	if err != nil {
		t.Fatalf("DecodeArchive() error = %v", err)
	}
	if len(got) != len(members) {
		t.Fatalf("decoded %d members, want %d", len(got), len(members))
	}
	for i := range members {
		if got[i].Name != members[i].Name || !bytes.Equal(got[i].Data, members[i].Data) {
			t.Errorf("member %d = %q/%q, want %q/%q", i, got[i].Name, got[i].Data, members[i].Name, members[i].Data)
		}
	}

	if _, err := testutil.EncodeArchive([]testutil.ArMember{{Name: "a_very_long_member_name.o"}}); err == nil {
		t.Error("expected error for long member name")
	}
}

func TestFakeArchiverDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libdup.a")
	testutil.WriteArchive(t, path,
		testutil.ArMember{Name: "x.o", Data: []byte("first")},
		testutil.ArMember{Name: "x.o", Data: []byte("second")},
	)

	fake := &testutil.FakeArchiver{}
	members, err := fake.List(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[1].Occurrence != 2 {
		t.Fatalf("List() = %+v, want two members with occurrences 1 and 2", members)
	}

	got, err := fake.Extract(context.Background(), path, members[1], filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(got)
	if string(data) != "second" {
		t.Errorf("extracted %q, want second", data)
	}
}

func TestDescribeRunner(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "a.o")
	os.WriteFile(obj, []byte("ELF 64-bit LSB relocatable, x86-64"), 0o644)
	bad := filepath.Join(dir, "b.o")
	os.WriteFile(bad, []byte(testutil.Unprobeable), 0o644)

	r := testutil.DescribeRunner("readelf")

	res, err := r.Run(context.Background(), "", "file", "-b", obj)
	if err != nil || string(res.Stdout) != "ELF 64-bit LSB relocatable, x86-64\n" {
		t.Errorf("file probe = %q, %v", res.Stdout, err)
	}
	if _, err := r.Run(context.Background(), "", "file", "-b", bad); !errors.Is(err, toolexec.ErrToolFailed) {
		t.Errorf("unprobeable content error = %v, want ErrToolFailed", err)
	}
	if _, err := r.Run(context.Background(), "", "readelf", "-h", obj); !errors.Is(err, toolexec.ErrToolNotFound) {
		t.Errorf("missing tool error = %v, want ErrToolNotFound", err)
	}
	if n := len(r.Calls()); n != 3 {
		t.Errorf("recorded %d calls, want 3", n)
	}
}

var _ archive.Archiver = (*testutil.FakeArchiver)(nil)

func TestBinutilsRunnerDrivesArchiveTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libdup.a")
	testutil.WriteArchive(t, path,
		testutil.ArMember{Name: "x.o", Data: []byte("first")},
		testutil.ArMember{Name: "x.o", Data: []byte("second")},
	)

	fake := &testutil.FakeArchiver{}
	runner := testutil.BinutilsRunner(fake)
	tool := archive.NewTool("/usr/bin/ar", runner)
	ctx := context.Background()

	members, err := tool.List(ctx, path)
	if err != nil || len(members) != 2 {
		t.Fatalf("List() = %v, %v", members, err)
	}
	got, err := tool.Extract(ctx, path, members[1], filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if data, _ := os.ReadFile(got); string(data) != "second" {
		t.Errorf("extracted %q, want second occurrence", data)
	}

	rebuilt := filepath.Join(dir, "new.a")
	if err := tool.Create(ctx, rebuilt, []string{got}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m := testutil.ReadArchive(t, rebuilt); len(m) != 1 || string(m[0].Data) != "second" {
		t.Errorf("rebuilt archive = %+v", m)
	}

	if _, err := runner.Run(ctx, "", "ar", "d", path, "x.o"); !errors.Is(err, toolexec.ErrToolFailed) {
		t.Errorf("unsupported ar invocation error = %v", err)
	}
	if fake.ListCalls != 1 || fake.ExtractCalls != 1 || fake.CreateCalls != 1 {
		t.Errorf("calls list=%d extract=%d create=%d", fake.ListCalls, fake.ExtractCalls, fake.CreateCalls)
	}
}
