package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/config"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/logging"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/platform"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/report"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	format     string
	logLevel   string
	noColor    bool
	verbose    bool
	stateDir   string
	workDir    string
	jobs       int
	ar         string
	fileTool   string
	readelf    string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "Lua config file (default: $ARFILTER_CONFIG, then ./"+config.DefaultConfigName+")")
	fs.StringVarP(&c.format, "format", "o", "text", "output format: text, json, yaml or toml")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error or off")
	fs.BoolVar(&c.noColor, "no-color", false, "disable coloured output")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "list every member and show full error details")
	fs.StringVar(&c.stateDir, "state-dir", "", "directory for archive locks and rebuild journals (default: $ARFILTER_STATE_DIR)")
	fs.StringVar(&c.workDir, "workdir", "", "parent directory for scratch space")
	fs.IntVarP(&c.jobs, "jobs", "j", 0, "members to classify concurrently")
	fs.StringVar(&c.ar, "ar", "", "ar binary")
	fs.StringVar(&c.fileTool, "file-tool", "", "file binary")
	fs.StringVar(&c.readelf, "readelf", "", "readelf binary")
}

// session is the loaded configuration plus the logger and report writer
// derived from it.
type session struct {
	cfg     *config.Config
	cfgPath string
	format  report.Format
	log     logging.Logger
	out     *report.Writer
}

func (a *app) newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("arfilter "+name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stdout, "Usage: arfilter %s\n\nFlags:\n%s", usage, fs.FlagUsages())
	}
	return fs
}

// parse parses args and reports whether the command is already finished
// (help shown or a usage error), with its exit code.
func (a *app) parse(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, true
		}
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		fmt.Fprintf(a.stderr, "Run '%s --help' for usage.\n", fs.Name())
		return exitUsage, true
	}
	return exitOK, false
}

func (a *app) usageError(format string, args ...any) int {
	fmt.Fprintf(a.stderr, "Error: "+format+"\n", args...)
	return exitUsage
}

func (a *app) configError(err error, verbose bool) int {
	fmt.Fprintf(a.stderr, "Error: %s\n", config.FormatError(err, verbose))
	return exitUsage
}

// load reads the config file (if any), applies environment and flag
// overrides, validates the result and sets up logging and output.
// Precedence: flags, then environment, then the config file.
func (a *app) load(ctx context.Context, fs *pflag.FlagSet, c *commonFlags) (*session, error) {
	format, err := report.ParseFormat(c.format)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: config.Default(), cfgPath: resolveConfigPath(c.configPath), format: format}
	if s.cfgPath != "" {
		parser := config.NewParser(platform.NewDetector())
		if s.cfg, err = parser.ParseFile(ctx, s.cfgPath); err != nil {
			return nil, err
		}
	}

	cfg := s.cfg
	if env := os.Getenv(config.EnvStateDir); env != "" {
		cfg.StateDir = env
	}
	for _, o := range []struct {
		val string
		dst *string
	}{
		{c.stateDir, &cfg.StateDir},
		{c.workDir, &cfg.WorkDir},
		{c.ar, &cfg.Tools.Ar},
		{c.fileTool, &cfg.Tools.File},
		{c.readelf, &cfg.Tools.Readelf},
	} {
		if o.val != "" {
			*o.dst = o.val
		}
	}
	if fs.Changed("jobs") {
		cfg.Jobs = c.jobs
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logOpts := logging.DefaultOptions()
	logOpts.Output = a.stderr
	if c.verbose {
		logOpts.Level = "info"
	}
	if cfg.Log.Level != "" {
		logOpts.Level = cfg.Log.Level
	}
	if cfg.Log.Color != nil {
		logOpts.NoColor = !*cfg.Log.Color
	}
	logging.ApplyEnv(&logOpts)
	if c.logLevel != "" {
		if _, ok := logging.ParseLevel(c.logLevel); !ok {
			return nil, &config.ValidationError{Field: "--log-level", Message: fmt.Sprintf("unknown level %q", c.logLevel)}
		}
		logOpts.Level = c.logLevel
	}
	if c.noColor {
		logOpts.NoColor = true
	}
	s.log = logging.New(logOpts)

	outOpts := []report.Option{report.WithVerbose(c.verbose)}
	if logOpts.NoColor {
		outOpts = append(outOpts, report.WithColor(false))
	}
	s.out = report.New(a.stdout, format, outOpts...)

	if s.cfgPath != "" {
		s.log.Debug("config loaded", "path", s.cfgPath)
	}
	return s, nil
}

func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(config.EnvConfig); env != "" {
		return env
	}
	if _, err := os.Stat(config.DefaultConfigName); err == nil {
		return config.DefaultConfigName
	}
	return ""
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "arfilter")
	}
	return filepath.Join(os.TempDir(), "arfilter")
}
