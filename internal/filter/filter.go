package filter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/config"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/logging"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/probe"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/toolexec"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/transaction"
)

// Filter removes members that do not belong to a target architecture from
// static archives.
type Filter struct {
	archiver   archive.Archiver
	classifier *probe.Classifier
	probes     []probe.Probe
	registry   *arch.Registry
	log        logging.Logger
	clock      Clock

	jobs     int
	workDir  string
	stateDir string
	dryRun   bool
}

// Option configures a Filter.
type Option func(*Filter)

// WithRegistry sets the target registry. The default is arch.Builtin().
func WithRegistry(r *arch.Registry) Option {
	return func(f *Filter) { f.registry = r }
}

// WithJobs sets how many members are classified concurrently.
func WithJobs(n int) Option {
	return func(f *Filter) { f.jobs = n }
}

// WithWorkDir sets the parent of the per-run scratch directory. The
// default is the system temp directory.
func WithWorkDir(dir string) Option {
	return func(f *Filter) { f.workDir = dir }
}

// WithStateDir enables the archive lock and rebuild journal under dir.
// Without it runs are neither locked nor journaled.
func WithStateDir(dir string) Option {
	return func(f *Filter) { f.stateDir = dir }
}

// WithDryRun classifies without rebuilding.
func WithDryRun(dryRun bool) Option {
	return func(f *Filter) { f.dryRun = dryRun }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(f *Filter) { f.log = l }
}

// WithClock sets the clock used for timestamps.
func WithClock(c Clock) Option {
	return func(f *Filter) { f.clock = c }
}

// New creates a Filter that operates on archives through archiver and
// classifies members with probes, in order.
func New(archiver archive.Archiver, probes []probe.Probe, opts ...Option) *Filter {
	f := &Filter{
		archiver: archiver,
		probes:   probes,
		registry: arch.Builtin(),
		log:      logging.Nop(),
		clock:    RealClock{},
		jobs:     1,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.jobs < 1 {
		f.jobs = 1
	}
	if f.registry == nil {
		f.registry = arch.Builtin()
	}
	if f.log == nil {
		f.log = logging.Nop()
	}
	if f.clock == nil {
		f.clock = RealClock{}
	}
	f.classifier = probe.NewClassifier(f.registry, f.log, f.probes...)
	return f
}

// NewFromConfig wires a Filter to the system tools named in cfg. Options
// are applied after the config, so they override it.
func NewFromConfig(cfg *config.Config, runner toolexec.Runner, log logging.Logger, opts ...Option) (*Filter, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	archiver := archive.NewTool(cfg.Tools.Ar, runner)
	probes := probe.DefaultProbes(runner, probe.Tools{File: cfg.Tools.File, Readelf: cfg.Tools.Readelf})

	base := []Option{
		WithRegistry(registry),
		WithJobs(cfg.Jobs),
		WithWorkDir(cfg.WorkDir),
		WithStateDir(cfg.StateDir),
		WithLogger(log),
	}
	return New(archiver, probes, append(base, opts...)...), nil
}

// Registry returns the target registry in use.
func (f *Filter) Registry() *arch.Registry {
	return f.registry
}

// Run filters archivePath down to the members compatible with the target
// named by targetName (an ABI or alias).
//
// The returned Result is never nil. The error is non-nil exactly when the
// status is StatusFailure or StatusConfigError. An unsupported target is
// rejected before any file is touched or tool is run.
func (f *Filter) Run(ctx context.Context, archivePath, targetName string) (*Result, error) {
	start := f.clock.Now()
	res := &Result{
		ID:      uuid.New().String(),
		Archive: archivePath,
		Target:  targetName,
		DryRun:  f.dryRun,
		Started: start,
	}

	err := f.run(ctx, res, archivePath, targetName)
	res.Duration = f.clock.Now().Sub(start)
	if err != nil {
		res.Error = toolexec.Redact(err.Error())
		f.log.Error("archive filter failed", "archive", res.Archive, "target", res.Target, "reason", res.Reason, "error", err)
	} else {
		f.log.Info("archive filtered",
			"archive", res.Archive, "target", res.Target, "status", string(res.Status),
			"kept", res.Counts.Kept, "filtered", res.Counts.Filtered, "total", res.Counts.Total)
	}
	return res, err
}

func (f *Filter) run(ctx context.Context, res *Result, archivePath, targetName string) error {
	target, err := f.registry.Lookup(targetName)
	if err != nil {
		res.Status, res.Reason = StatusConfigError, ReasonUnsupportedTarget
		return err
	}
	res.Target = string(target.ABI)

	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return res.fail(ReasonArchiveMissing, fmt.Errorf("%w: %w", ErrArchiveNotFound, err))
	}
	res.Archive = abs
	info, err := os.Stat(abs)
	if err != nil {
		return res.fail(ReasonArchiveMissing, fmt.Errorf("%w: %w", ErrArchiveNotFound, err))
	}
	if !info.Mode().IsRegular() {
		return res.fail(ReasonArchiveMissing, fmt.Errorf("%w: %s is not a regular file", ErrArchiveNotFound, abs))
	}

	if f.stateDir != "" {
		lock, err := transaction.AcquireLock(ctx, f.stateDir, abs)
		if err != nil {
			return res.fail(ReasonLockFailed, err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				f.log.Warn("could not release archive lock", "lock", lock.Path(), "error", err)
			}
		}()

		recovered, err := transaction.Recover(ctx, f.stateDir, abs)
		res.Recovered = recovered
		for _, r := range recovered {
			res.diag("interrupted rebuild %s: %s", r.ID, r.Note)
		}
		if err != nil {
			return res.fail(ReasonRecoveryFailed, err)
		}
	}

	digest, size, err := archive.DigestFile(abs)
	if err != nil {
		return res.fail(ReasonUnreadable, err)
	}
	res.DigestBefore, res.SizeBefore = digest.String(), size

	if f.workDir != "" {
		if err := os.MkdirAll(f.workDir, 0o755); err != nil {
			return res.fail(ReasonScratchFailed, err)
		}
	}
	scratch, err := os.MkdirTemp(f.workDir, "arfilter-")
	if err != nil {
		return res.fail(ReasonScratchFailed, err)
	}
	defer os.RemoveAll(scratch)

	inspector := archive.NewInspector(f.archiver, abs, scratch)
	members, err := inspector.Members(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res.fail(ReasonCancelled, ctxErr)
		}
		f.log.Warn("could not list archive", "archive", abs, "error", err)
		res.diag("could not list archive: %s", toolexec.Redact(err.Error()))
		res.unchanged(StatusNoOp, ReasonUnlistable)
		return nil
	}
	res.Counts.Total = len(members)
	if len(members) == 0 {
		res.unchanged(StatusNoOp, ReasonEmptyArchive)
		return nil
	}

	results, err := f.classifyMembers(ctx, inspector, members, target)
	if err != nil {
		return res.fail(ReasonCancelled, err)
	}
	res.Members = results

	for _, tool := range missingTools(results) {
		f.log.Warn("probe tool not found", "probe", tool, "archive", abs)
		res.diag("%s: probe tool not found, classification relied on the remaining probes", tool)
	}

	var keep []archive.Member
	for _, r := range results {
		if r.Classification.Outcome == probe.OutcomeUnavailable {
			res.diag("%s (#%d): %s", r.Member.Name, r.Member.Index, failOpenDetail(r.Classification))
		}
		if r.Classification.Compatible {
			keep = append(keep, r.Member)
		} else {
			res.Counts.Filtered++
		}
	}
	res.Counts.Kept = len(keep)

	switch {
	case res.Counts.Filtered == 0:
		res.unchanged(StatusNoOp, ReasonAllCompatible)
		return nil
	case len(keep) == 0:
		res.unchanged(StatusFailure, ReasonAllIncompatible)
		return fmt.Errorf("%s: %w", abs, archive.ErrNothingToKeep)
	case f.dryRun:
		res.unchanged(StatusNoOp, ReasonDryRun)
		return nil
	}

	opts := []archive.RebuilderOption{archive.WithLogger(f.log)}
	if f.stateDir != "" {
		opts = append(opts, archive.WithJournal(transaction.NewJournal(f.stateDir, res.ID)))
	}
	rebuilt, err := archive.NewRebuilder(f.archiver, opts...).Rebuild(ctx, abs, keep, scratch)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrRestoreFailed):
			res.diag("original archive could not be restored; run `arfilter recover %s`", abs)
			return res.fail(ReasonRestoreFailed, err)
		case errors.Is(err, archive.ErrBackupFailed):
			res.unchanged(StatusFailure, ReasonBackupFailed)
			return err
		default:
			res.diag("original archive preserved")
			res.unchanged(StatusFailure, ReasonRebuildFailed)
			return err
		}
	}

	for _, m := range rebuilt.Skipped {
		res.Members[m.Index].Skipped = true
		res.diag("%s (#%d): could not be re-extracted, dropped from rebuilt archive", m.Name, m.Index)
	}
	res.Counts.Kept = rebuilt.Kept
	res.Counts.Skipped = len(rebuilt.Skipped)
	res.Status, res.Reason = StatusSuccess, ReasonFiltered
	res.DigestAfter, res.SizeAfter = rebuilt.DigestAfter.String(), rebuilt.SizeAfter
	return nil
}

// classifyMembers classifies every member, up to f.jobs at a time. Results
// are stored by member index so order never depends on scheduling.
func (f *Filter) classifyMembers(ctx context.Context, inspector *archive.Inspector, members []archive.Member, target arch.Target) ([]MemberResult, error) {
	out := make([]MemberResult, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.jobs)
	for i, m := range members {
		g.Go(func() error {
			c, err := f.classifyMember(gctx, inspector, m, target)
			if err != nil {
				return err
			}
			out[i] = MemberResult{Member: m, Classification: c}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Filter) classifyMember(ctx context.Context, inspector *archive.Inspector, m archive.Member, target arch.Target) (probe.Classification, error) {
	path, cleanup, err := inspector.Extract(ctx, m)
	defer cleanup()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return probe.Classification{}, ctxErr
		}
		f.log.Warn("member could not be extracted, keeping it", "member", m.Name, "index", m.Index, "error", err)
		return probe.Classification{
			Compatible: true,
			Outcome:    probe.OutcomeUnavailable,
			Reason:     ReasonExtractFailOpen,
			Errors:     []string{toolexec.Redact(err.Error())},
		}, nil
	}

	c, err := f.classifier.Classify(ctx, path, target)
	if err != nil {
		return probe.Classification{}, err
	}
	f.log.Debug("member classified", "member", m.Name, "index", m.Index, "compatible", c.Compatible, "reason", c.Reason)
	return c, nil
}

// missingTools returns each missing probe once, in order of first report.
func missingTools(results []MemberResult) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, name := range r.Classification.Missing {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func failOpenDetail(c probe.Classification) string {
	if len(c.Errors) == 0 {
		return c.Reason
	}
	return c.Reason + " (" + strings.Join(c.Errors, "; ") + ")"
}
