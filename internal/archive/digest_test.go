package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	os.WriteFile(a, []byte("same"), 0o644)
	os.WriteFile(b, []byte("same"), 0o644)

	da, size, err := DigestFile(a)
	if err != nil {
		t.Fatal(err)
	}
	if size != 4 {
		t.Errorf("size = %d, want 4", size)
	}
	db, _, _ := DigestFile(b)
	if da != db {
		t.Error("equal content hashed differently")
	}

	os.WriteFile(b, []byte("diff"), 0o644)
	db, _, _ = DigestFile(b)
	if da == db {
		t.Error("different content hashed the same")
	}
}

func TestParseDigestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	os.WriteFile(path, []byte("payload"), 0o644)
	d, _, err := DigestFile(path)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseDigest(d.String())
	if err != nil {
		t.Fatalf("ParseDigest() error = %v", err)
	}
	if parsed != d {
		t.Error("parsed digest differs")
	}

	for _, bad := range []string{"zz", "abcd", ""} {
		if _, err := ParseDigest(bad); err == nil {
			t.Errorf("ParseDigest(%q) should fail", bad)
		}
	}
}

func TestDigestMarshalText(t *testing.T) {
	var zero Digest
	if b, _ := zero.MarshalText(); len(b) != 0 {
		t.Errorf("zero digest marshals to %q", b)
	}
	if !zero.IsZero() {
		t.Error("IsZero() = false for zero digest")
	}
}
