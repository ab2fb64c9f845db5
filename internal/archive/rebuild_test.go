package archive_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/testutil"
)

type recordingJournal struct {
	begins  int
	ends    int
	backup  string
	digest  archive.Digest
	beginEr error
}

func (j *recordingJournal) Begin(archivePath, backupPath string, digest archive.Digest) error {
	j.begins++
	j.backup = backupPath
	j.digest = digest
	return j.beginEr
}

func (j *recordingJournal) End() error {
	j.ends++
	return nil
}

func threeMemberArchive(t *testing.T) (string, []byte) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "libfoo.a")
	testutil.WriteArchive(t, path,
		testutil.ArMember{Name: "a.o", Data: []byte("arm64 object a")},
		testutil.ArMember{Name: "b.o", Data: []byte("x86 object b")},
		testutil.ArMember{Name: "c.o", Data: []byte("arm64 object c")},
	)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return path, data
}

func assertUnchanged(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("archive content changed")
	}
}

func assertNoBackups(t *testing.T, path string) {
	t.Helper()
	matches, _ := filepath.Glob(path + ".*.bak")
	if len(matches) != 0 {
		t.Errorf("backup files left behind: %v", matches)
	}
}

func TestRebuildKeepsSubset(t *testing.T) {
	path, original := threeMemberArchive(t)
	fake := &testutil.FakeArchiver{}
	journal := &recordingJournal{}

	members, err := fake.List(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	keep := []archive.Member{members[0], members[2]}

	res, err := archive.NewRebuilder(fake, archive.WithJournal(journal)).
		Rebuild(context.Background(), path, keep, t.TempDir())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if res.Kept != 2 || len(res.Skipped) != 0 {
		t.Errorf("Kept = %d, Skipped = %v", res.Kept, res.Skipped)
	}
	if res.SizeBefore != int64(len(original)) {
		t.Errorf("SizeBefore = %d, want %d", res.SizeBefore, len(original))
	}
	if res.SizeAfter == 0 || res.SizeAfter >= res.SizeBefore {
		t.Errorf("SizeAfter = %d, want smaller than %d", res.SizeAfter, res.SizeBefore)
	}
	if res.DigestBefore == res.DigestAfter {
		t.Error("digest unchanged after rebuild")
	}

	got := testutil.ReadArchive(t, path)
	if len(got) != 2 || got[0].Name != "a.o" || got[1].Name != "c.o" {
		t.Fatalf("rebuilt members = %v", got)
	}
	if string(got[0].Data) != "arm64 object a" || string(got[1].Data) != "arm64 object c" {
		t.Error("member bytes were altered")
	}

	if journal.begins != 1 || journal.ends != 1 {
		t.Errorf("journal begins=%d ends=%d, want 1/1", journal.begins, journal.ends)
	}
	if journal.digest != res.DigestBefore {
		t.Error("journal recorded the wrong digest")
	}
	if !strings.HasSuffix(journal.backup, ".bak") {
		t.Errorf("journal backup path = %q", journal.backup)
	}
	assertNoBackups(t, path)
}

func TestRebuildKeepsFileMode(t *testing.T) {
	path, _ := threeMemberArchive(t)
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	fake := &testutil.FakeArchiver{}
	members, err := fake.List(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := archive.NewRebuilder(fake).Rebuild(context.Background(), path, members[:1], t.TempDir()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("mode = %o, want 600", got)
	}
}

func TestRebuildDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libdup.a")
	testutil.WriteArchive(t, path,
		testutil.ArMember{Name: "util.o", Data: []byte("x86 util")},
		testutil.ArMember{Name: "util.o", Data: []byte("arm64 util")},
	)
	fake := &testutil.FakeArchiver{}
	members, _ := fake.List(context.Background(), path)

	if _, err := archive.NewRebuilder(fake).Rebuild(context.Background(), path, members[1:], t.TempDir()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	got := testutil.ReadArchive(t, path)
	if len(got) != 1 || string(got[0].Data) != "arm64 util" {
		t.Errorf("rebuilt members = %v, want the second util.o", got)
	}
}

func TestRebuildNothingToKeep(t *testing.T) {
	path, original := threeMemberArchive(t)
	fake := &testutil.FakeArchiver{}

	_, err := archive.NewRebuilder(fake).Rebuild(context.Background(), path, nil, t.TempDir())
	if !errors.Is(err, archive.ErrNothingToKeep) {
		t.Fatalf("Rebuild() error = %v, want ErrNothingToKeep", err)
	}
	if fake.ExtractCalls != 0 || fake.CreateCalls != 0 {
		t.Error("archiver used for an empty keep list")
	}
	assertUnchanged(t, path, original)
	assertNoBackups(t, path)
}

func TestRebuildRestoresOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		archive *testutil.FakeArchiver
	}{
		{
			name:    "create fails",
			archive: &testutil.FakeArchiver{CreateErr: errors.New("ar: disk full")},
		},
		{
			name:    "create writes empty file",
			archive: &testutil.FakeArchiver{CreateEmpty: true},
		},
		{
			name:    "no member re-extracts",
			archive: &testutil.FakeArchiver{FailExtractFrom: ".bak"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, original := threeMemberArchive(t)
			journal := &recordingJournal{}
			members, _ := tt.archive.List(context.Background(), path)

			_, err := archive.NewRebuilder(tt.archive, archive.WithJournal(journal)).
				Rebuild(context.Background(), path, members[:2], t.TempDir())
			if !errors.Is(err, archive.ErrRebuildFailed) {
				t.Fatalf("Rebuild() error = %v, want ErrRebuildFailed", err)
			}

			assertUnchanged(t, path, original)
			assertNoBackups(t, path)
			if journal.ends != 1 {
				t.Errorf("journal ends = %d, want 1 after a clean restore", journal.ends)
			}
		})
	}
}

func TestRebuildSkipsUnextractableMember(t *testing.T) {
	path, _ := threeMemberArchive(t)
	fake := &testutil.FakeArchiver{}
	members, _ := fake.List(context.Background(), path)

	fake.ExtractErr = map[string]error{"c.o": errors.New("truncated member")}

	res, err := archive.NewRebuilder(fake).Rebuild(context.Background(), path, []archive.Member{members[0], members[2]}, t.TempDir())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if res.Kept != 1 || len(res.Skipped) != 1 || res.Skipped[0].Name != "c.o" {
		t.Errorf("Kept = %d, Skipped = %v", res.Kept, res.Skipped)
	}
	if got := testutil.ReadArchive(t, path); len(got) != 1 || got[0].Name != "a.o" {
		t.Errorf("rebuilt members = %v", got)
	}
}

func TestRebuildCancelled(t *testing.T) {
	path, original := threeMemberArchive(t)
	fake := &testutil.FakeArchiver{}
	members, _ := fake.List(context.Background(), path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := archive.NewRebuilder(fake).Rebuild(ctx, path, members, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Rebuild() error = %v, want context.Canceled", err)
	}
	assertUnchanged(t, path, original)
	assertNoBackups(t, path)
}

func TestRebuildJournalBeginFails(t *testing.T) {
	path, original := threeMemberArchive(t)
	fake := &testutil.FakeArchiver{}
	members, _ := fake.List(context.Background(), path)
	journal := &recordingJournal{beginEr: errors.New("state dir read-only")}

	_, err := archive.NewRebuilder(fake, archive.WithJournal(journal)).
		Rebuild(context.Background(), path, members, t.TempDir())
	if !errors.Is(err, archive.ErrBackupFailed) {
		t.Fatalf("Rebuild() error = %v, want ErrBackupFailed", err)
	}
	if fake.CreateCalls != 0 {
		t.Error("archive rebuilt without a journal entry")
	}
	assertUnchanged(t, path, original)
	assertNoBackups(t, path)
}

func TestRebuildMissingArchive(t *testing.T) {
	fake := &testutil.FakeArchiver{}
	_, err := archive.NewRebuilder(fake).Rebuild(context.Background(), filepath.Join(t.TempDir(), "gone.a"),
		[]archive.Member{{Name: "a.o", Occurrence: 1}}, t.TempDir())
	if !errors.Is(err, archive.ErrBackupFailed) {
		t.Errorf("Rebuild() error = %v, want ErrBackupFailed", err)
	}
}
