package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/logging"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/platform"
)

// Parser evaluates Lua config files with platform detection.
// It is safe for concurrent use; every parse gets its own VM.
type Parser struct {
	detector platform.Detector
	log      logging.Logger
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the `platform` global undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector, log: logging.Nop()}
}

// WithLogger sets the logger used for parse diagnostics.
func (p *Parser) WithLogger(l logging.Logger) *Parser {
	p.log = l
	return p
}

// ParseFile reads and parses a config file. Relative paths inside the file
// are resolved against the file's directory.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%d bytes, maximum is %d", info.Size(), MaxConfigSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := p.parse(ctx, string(data), false)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.ResolvePaths(filepath.Dir(abs))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p.log.Debug("config loaded", "path", abs, "archives", len(cfg.Archives), "targets", len(cfg.Targets))
	return cfg, nil
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	return p.parse(ctx, luaCode, true)
}

func (p *Parser) parse(ctx context.Context, luaCode string, validate bool) (*Config, error) {
	if len(luaCode) > MaxConfigSize {
		return nil, &ParseError{
			Message: "config too large",
			Detail:  fmt.Sprintf("%d bytes, maximum is %d", len(luaCode), MaxConfigSize),
		}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ParseError{Message: "config evaluation aborted", Detail: ctxErr.Error(), Err: ctxErr}
		}
		return nil, &ParseError{Message: "Lua error", Detail: err.Error(), Err: err}
	}

	cfg, err := extractConfig(L)
	if err != nil {
		return nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// extractConfig reads the global "arfilter" table over the defaults. A
// config without the table is an error; an empty table is not.
func extractConfig(L *lua.LState) (*Config, error) {
	root := L.GetGlobal(luaGlobalArfilter)
	table, ok := root.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'arfilter' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	cfg := Default()

	if v := table.RawGetString(luaFieldTools); v != lua.LNil {
		tools, err := asTable(v, luaFieldTools)
		if err != nil {
			return nil, err
		}
		for _, f := range []struct {
			key string
			dst *string
		}{
			{luaFieldAr, &cfg.Tools.Ar},
			{luaFieldFile, &cfg.Tools.File},
			{luaFieldReadelf, &cfg.Tools.Readelf},
		} {
			s, set, err := optString(tools, f.key, "tools."+f.key)
			if err != nil {
				return nil, err
			}
			if set {
				*f.dst = s
			}
		}
	}

	if n, set, err := optInt(table, luaFieldJobs, luaFieldJobs); err != nil {
		return nil, err
	} else if set {
		cfg.Jobs = n
	}

	var err error
	if cfg.WorkDir, _, err = optString(table, luaFieldWorkDir, luaFieldWorkDir); err != nil {
		return nil, err
	}
	if cfg.StateDir, _, err = optString(table, luaFieldStateDir, luaFieldStateDir); err != nil {
		return nil, err
	}

	if v := table.RawGetString(luaFieldLog); v != lua.LNil {
		logTable, err := asTable(v, luaFieldLog)
		if err != nil {
			return nil, err
		}
		if cfg.Log.Level, _, err = optString(logTable, luaFieldLevel, "log.level"); err != nil {
			return nil, err
		}
		switch c := logTable.RawGetString(luaFieldColor).(type) {
		case *lua.LNilType:
		case lua.LBool:
			b := bool(c)
			cfg.Log.Color = &b
		default:
			return nil, typeError("log.color", "boolean", c)
		}
	}

	if v := table.RawGetString(luaFieldTargets); v != lua.LNil {
		targets, err := extractTargets(v)
		if err != nil {
			return nil, err
		}
		cfg.Targets = targets
	}

	if v := table.RawGetString(luaFieldArchives); v != lua.LNil {
		archives, err := extractArchives(v)
		if err != nil {
			return nil, err
		}
		cfg.Archives = archives
	}

	return cfg, nil
}

func extractTargets(v lua.LValue) ([]arch.Target, error) {
	list, err := asTable(v, luaFieldTargets)
	if err != nil {
		return nil, err
	}

	var targets []arch.Target
	var loopErr error
	forEachEntry(list, func(i int, item lua.LValue) bool {
		field := fmt.Sprintf("targets[%d]", i)
		t, err := asTable(item, field)
		if err != nil {
			loopErr = err
			return false
		}

		var target arch.Target
		var abi string
		if abi, _, err = optString(t, luaFieldABI, field+".abi"); err != nil {
			loopErr = err
			return false
		}
		target.ABI = arch.ABI(abi)
		if target.Machine, _, err = optString(t, luaFieldArch, field+".arch"); err != nil {
			loopErr = err
			return false
		}
		if target.Bits, _, err = optInt(t, luaFieldBits, field+".bits"); err != nil {
			loopErr = err
			return false
		}
		for _, f := range []struct {
			key string
			dst *[]string
		}{
			{luaFieldMatch, &target.Match},
			{luaFieldExclude, &target.Exclude},
			{luaFieldSamples, &target.Samples},
			{luaFieldAliases, &target.Aliases},
		} {
			if *f.dst, err = optStrings(t, f.key, field+"."+f.key); err != nil {
				loopErr = err
				return false
			}
		}
		targets = append(targets, target)
		return true
	})
	return targets, loopErr
}

func extractArchives(v lua.LValue) ([]ArchiveSpec, error) {
	list, err := asTable(v, luaFieldArchives)
	if err != nil {
		return nil, err
	}

	var archives []ArchiveSpec
	var loopErr error
	forEachEntry(list, func(i int, item lua.LValue) bool {
		field := fmt.Sprintf("archives[%d]", i)
		t, err := asTable(item, field)
		if err != nil {
			loopErr = err
			return false
		}
		var spec ArchiveSpec
		if spec.Path, _, err = optString(t, luaFieldPath, field+".path"); err != nil {
			loopErr = err
			return false
		}
		if spec.ABI, _, err = optString(t, luaFieldABI, field+".abi"); err != nil {
			loopErr = err
			return false
		}
		archives = append(archives, spec)
		return true
	})
	return archives, loopErr
}

// forEachEntry walks the array part of t in order. nil holes left by
// platform conditionals (`platform.is_linux and {...} or nil`) are skipped.
func forEachEntry(t *lua.LTable, fn func(i int, v lua.LValue) bool) {
	n := t.MaxN()
	for i := 1; i <= n; i++ {
		v := t.RawGetInt(i)
		if v == lua.LNil {
			continue
		}
		if !fn(i, v) {
			return
		}
	}
}

func asTable(v lua.LValue, field string) (*lua.LTable, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, typeError(field, "table", v)
	}
	return t, nil
}

func optString(t *lua.LTable, key, field string) (string, bool, error) {
	switch v := t.RawGetString(key).(type) {
	case *lua.LNilType:
		return "", false, nil
	case lua.LString:
		return string(v), true, nil
	default:
		return "", false, typeError(field, "string", v)
	}
}

func optInt(t *lua.LTable, key, field string) (int, bool, error) {
	switch v := t.RawGetString(key).(type) {
	case *lua.LNilType:
		return 0, false, nil
	case lua.LNumber:
		n := int(v)
		if lua.LNumber(n) != v {
			return 0, false, &ValidationError{Field: field, Message: fmt.Sprintf("must be an integer, got %v", v)}
		}
		return n, true, nil
	default:
		return 0, false, typeError(field, "number", v)
	}
}

func optStrings(t *lua.LTable, key, field string) ([]string, error) {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return nil, nil
	}
	list, err := asTable(v, field)
	if err != nil {
		return nil, err
	}
	var out []string
	var loopErr error
	forEachEntry(list, func(i int, item lua.LValue) bool {
		s, ok := item.(lua.LString)
		if !ok {
			loopErr = typeError(fmt.Sprintf("%s[%d]", field, i), "string", item)
			return false
		}
		out = append(out, string(s))
		return true
	})
	return out, loopErr
}

func typeError(field, want string, got lua.LValue) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf("expected %s, got %s", want, got.Type())}
}

// FormatError formats a config error for user display. In verbose mode the
// raw Lua error is shown; otherwise the stack traceback is dropped.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	if verbose {
		return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
	}
	detail := parseErr.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", parseErr.Message, detail)
}
