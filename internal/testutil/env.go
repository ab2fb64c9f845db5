// Package testutil provides isolation helpers and in-process fakes for
// testing arfilter without host binutils.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env holds the isolated directories created by SetupTestEnv.
type Env struct {
	Root     string
	StateDir string
	WorkDir  string
	LibDir   string
}

// SetupTestEnv creates isolated directories for one test and points the
// ARFILTER_* variables at them so tests never read the user's config or
// leave journals in the real state directory. Cleanup is handled by
// t.TempDir.
func SetupTestEnv(t *testing.T) Env {
	t.Helper()

	root := t.TempDir()
	env := Env{
		Root:     root,
		StateDir: filepath.Join(root, "state"),
		WorkDir:  filepath.Join(root, "work"),
		LibDir:   filepath.Join(root, "lib"),
	}

	t.Setenv("ARFILTER_STATE_DIR", env.StateDir)
	t.Setenv("ARFILTER_CONFIG", "")
	t.Setenv("ARFILTER_LOG_LEVEL", "off")
	t.Setenv("ARFILTER_NOCOLOR", "1")

	for _, dir := range []string{env.StateDir, env.WorkDir, env.LibDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return env
}
