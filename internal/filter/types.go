// Package filter runs the inspect, classify and rebuild pipeline over one
// archive, or over a batch of archive/target pairs.
//
// After Run returns, the archive path holds either the rebuilt archive with
// exactly the compatible members or the byte-identical original.
package filter

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/archive"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/probe"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/transaction"
)

var (
	ErrArchiveNotFound = errors.New("archive not found")
	ErrObjectNotFound  = errors.New("object file not found")
)

// Status is the overall outcome of one run.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusNoOp        Status = "noop"
	StatusFailure     Status = "failure"
	StatusConfigError Status = "config-error"
)

// ExitCode maps a status to the CLI exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess, StatusNoOp:
		return 0
	case StatusConfigError:
		return 2
	default:
		return 1
	}
}

func (s Status) rank() int {
	switch s {
	case StatusNoOp:
		return 0
	case StatusSuccess:
		return 1
	case StatusFailure:
		return 2
	default:
		return 3
	}
}

// Worst returns the most severe status among results, StatusNoOp when
// there are none.
func Worst(results []*Result) Status {
	worst := StatusNoOp
	for _, r := range results {
		if r.Status.rank() > worst.rank() {
			worst = r.Status
		}
	}
	return worst
}

// Human-readable reasons attached to results.
const (
	ReasonFiltered          = "incompatible members removed"
	ReasonAllCompatible     = "all members compatible, archive unchanged"
	ReasonEmptyArchive      = "archive has no members"
	ReasonUnlistable        = "archive could not be listed, left unchanged"
	ReasonAllIncompatible   = "no compatible members, archive unchanged"
	ReasonDryRun            = "dry run, archive unchanged"
	ReasonUnsupportedTarget = "unsupported target architecture"
	ReasonArchiveMissing    = "archive not found"
	ReasonUnreadable        = "archive could not be read"
	ReasonLockFailed        = "could not lock archive"
	ReasonRecoveryFailed    = "could not recover an interrupted rebuild"
	ReasonScratchFailed     = "could not create scratch directory"
	ReasonCancelled         = "cancelled, archive unchanged"
	ReasonBackupFailed      = "backup failed, archive unchanged"
	ReasonRebuildFailed     = "rebuild failed, original archive preserved"
	ReasonRestoreFailed     = "rebuild failed and restore failed, backup kept for recovery"

	// ReasonExtractFailOpen is the classification reason for a member
	// that could not be extracted.
	ReasonExtractFailOpen = "extraction failed, assumed compatible"
)

// Counts summarizes member dispositions. Skipped members were compatible
// but could not be re-extracted during the rebuild.
type Counts struct {
	Kept     int `json:"kept" yaml:"kept" toml:"kept"`
	Filtered int `json:"filtered" yaml:"filtered" toml:"filtered"`
	Skipped  int `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"`
	Total    int `json:"total" yaml:"total" toml:"total"`
}

// MemberResult is the verdict for one archive member.
type MemberResult struct {
	Member         archive.Member       `json:"member" yaml:"member" toml:"member"`
	Classification probe.Classification `json:"classification" yaml:"classification" toml:"classification"`
	Skipped        bool                 `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"`
}

// Result is the structured outcome of filtering one archive.
type Result struct {
	ID      string `json:"id" yaml:"id" toml:"id"`
	Archive string `json:"archive" yaml:"archive" toml:"archive"`
	Target  string `json:"target" yaml:"target" toml:"target"`
	Status  Status `json:"status" yaml:"status" toml:"status"`
	Reason  string `json:"reason" yaml:"reason" toml:"reason"`
	DryRun  bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty" toml:"dry_run,omitempty"`
	Counts  Counts `json:"counts" yaml:"counts" toml:"counts"`

	Members     []MemberResult         `json:"members,omitempty" yaml:"members,omitempty" toml:"members,omitempty"`
	Diagnostics []string               `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" toml:"diagnostics,omitempty"`
	Recovered   []transaction.Recovery `json:"recovered,omitempty" yaml:"recovered,omitempty" toml:"recovered,omitempty"`

	DigestBefore string `json:"digest_before,omitempty" yaml:"digest_before,omitempty" toml:"digest_before,omitempty"`
	DigestAfter  string `json:"digest_after,omitempty" yaml:"digest_after,omitempty" toml:"digest_after,omitempty"`
	SizeBefore   int64  `json:"size_before" yaml:"size_before" toml:"size_before"`
	SizeAfter    int64  `json:"size_after" yaml:"size_after" toml:"size_after"`

	Started  time.Time     `json:"started" yaml:"started" toml:"started"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns" toml:"duration_ns"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// Changed reports whether the archive was rewritten.
func (r *Result) Changed() bool {
	return r.Status == StatusSuccess && !r.DryRun
}

func (r *Result) diag(format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, args...))
}

// unchanged settles a result whose archive was not touched.
func (r *Result) unchanged(status Status, reason string) {
	r.Status, r.Reason = status, reason
	r.DigestAfter, r.SizeAfter = r.DigestBefore, r.SizeBefore
}

func (r *Result) fail(reason string, err error) error {
	r.Status, r.Reason = StatusFailure, reason
	return err
}

// ObjectResult is the verdict for one loose object file.
type ObjectResult struct {
	Path           string               `json:"path" yaml:"path" toml:"path"`
	Classification probe.Classification `json:"classification" yaml:"classification" toml:"classification"`
}
