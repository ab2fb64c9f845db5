// Package toolexec runs the external binutils-style tools arfilter delegates
// to (ar, file, readelf) with a scrubbed, locale-stable environment and
// translates their failures into typed errors.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolFailed   = errors.New("tool failed")
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner abstracts command execution so callers can be tested without the
// real tools installed.
type Runner interface {
	// Run executes name with args in dir (empty means the current directory).
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// ToolError reports a tool that ran but did not succeed.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	wrapped  error
}

// Error returns a redacted description of the failure.
func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns ErrToolFailed and the underlying exec error.
func (e *ToolError) Unwrap() []error {
	return []error{ErrToolFailed, e.wrapped}
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	// ExtraEnv is appended to the scrubbed environment.
	ExtraEnv []string
}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and captures stdout and stderr separately.
// The environment is reduced to PATH, HOME and TMPDIR with the C locale so
// tool output is stable across hosts.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(scrubbedEnv(), r.ExtraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	res.ExitCode = -1
	return res, translateError(ctx, name, args, err, stderr.String(), &res)
}

func scrubbedEnv() []string {
	env := []string{"LC_ALL=C", "LANG=C"}
	for _, key := range []string{"PATH", "HOME", "TMPDIR"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// translateError maps exec failures to ErrToolNotFound, context errors, or
// a ToolError.
func translateError(ctx context.Context, name string, args []string, err error, stderr string, res *Result) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%s timed out: %w", name, context.DeadlineExceeded)
		}
		return fmt.Errorf("%s cancelled: %w", name, ctxErr)
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		res.ExitCode = 127
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}

	return &ToolError{
		Tool:     name,
		Args:     append([]string(nil), args...),
		ExitCode: res.ExitCode,
		Stderr:   Redact(stderr),
		wrapped:  err,
	}
}

var userDirPattern = regexp.MustCompile(`/(home|Users)/[^/\s]+`)

// Redact trims tool output for use in error messages and hides the user's
// home directory.
func Redact(msg string) string {
	msg = strings.TrimSpace(msg)

	const maxLen = 200
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" && home != "/" {
		msg = strings.ReplaceAll(msg, home, "$HOME")
	}
	return userDirPattern.ReplaceAllString(msg, "/$1/<user>")
}
