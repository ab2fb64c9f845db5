package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/logging"
)

// Config is the resolved arfilter configuration.
type Config struct {
	Tools    Tools         `json:"tools"`
	Jobs     int           `json:"jobs"`
	WorkDir  string        `json:"workdir,omitempty"`
	StateDir string        `json:"state_dir,omitempty"`
	Log      LogConfig     `json:"log"`
	Targets  []arch.Target `json:"targets,omitempty"`
	Archives []ArchiveSpec `json:"archives,omitempty"`
}

// Tools names the external binaries. Values may be bare names looked up in
// PATH or paths.
type Tools struct {
	Ar      string `json:"ar"`
	File    string `json:"file"`
	Readelf string `json:"readelf"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level,omitempty"`
	// Color is nil when the config does not say.
	Color *bool `json:"color,omitempty"`
}

// ArchiveSpec is one archive of a batch run.
type ArchiveSpec struct {
	Path string `json:"path"`
	ABI  string `json:"abi"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Tools: Tools{Ar: "ar", File: "file", Readelf: "readelf"},
		Jobs:  1,
	}
}

// Registry builds the target registry: the built-in targets plus any
// declared in the config.
func (c *Config) Registry() (*arch.Registry, error) {
	if len(c.Targets) == 0 {
		return arch.Builtin(), nil
	}
	return arch.NewRegistry(c.Targets...)
}

// ResolvePaths makes relative archive, workdir and state_dir paths
// relative to baseDir (normally the config file's directory).
func (c *Config) ResolvePaths(baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.WorkDir = resolve(c.WorkDir)
	c.StateDir = resolve(c.StateDir)
	for i := range c.Archives {
		c.Archives[i].Path = resolve(c.Archives[i].Path)
	}
}

// Validate performs validation on a Config, including building the target
// registry and resolving every archive's ABI against it.
func (c *Config) Validate() error {
	if c.Jobs < 1 || c.Jobs > MaxJobs {
		return &ValidationError{
			Field:   luaFieldJobs,
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxJobs, c.Jobs),
		}
	}

	for _, tool := range []struct{ field, name string }{
		{"tools.ar", c.Tools.Ar},
		{"tools.file", c.Tools.File},
		{"tools.readelf", c.Tools.Readelf},
	} {
		if err := validateToolName(tool.name); err != nil {
			return &ValidationError{Field: tool.field, Message: err.Error()}
		}
	}

	if c.Log.Level != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return &ValidationError{
				Field:   "log.level",
				Message: fmt.Sprintf("unknown level %q (want debug, info, warn, error or off)", c.Log.Level),
			}
		}
	}

	if len(c.Targets) > MaxTargetCount {
		return &ValidationError{
			Field:   luaFieldTargets,
			Message: fmt.Sprintf("too many targets (%d), maximum is %d", len(c.Targets), MaxTargetCount),
		}
	}
	registry, err := c.Registry()
	if err != nil {
		return &ValidationError{Field: luaFieldTargets, Message: err.Error(), Err: err}
	}

	if len(c.Archives) > MaxArchiveCount {
		return &ValidationError{
			Field:   luaFieldArchives,
			Message: fmt.Sprintf("too many archives (%d), maximum is %d", len(c.Archives), MaxArchiveCount),
		}
	}
	for i, a := range c.Archives {
		if strings.TrimSpace(a.Path) == "" {
			return &ValidationError{Field: fmt.Sprintf("archives[%d].path", i+1), Message: "path cannot be empty"}
		}
		if _, err := registry.Lookup(a.ABI); err != nil {
			return &ValidationError{Field: fmt.Sprintf("archives[%d].abi", i+1), Message: err.Error(), Err: err}
		}
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validateToolName(tool string) error {
	if strings.TrimSpace(tool) == "" {
		return fmt.Errorf("tool cannot be empty")
	}
	if len(tool) > 4096 {
		return fmt.Errorf("tool path too long (%d chars)", len(tool))
	}
	if strings.ContainsAny(tool, "\x00\n") {
		return fmt.Errorf("tool contains control characters: %q", tool)
	}
	return nil
}
