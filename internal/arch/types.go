// Package arch describes the CPU architectures an archive can be filtered for.
//
// Each Target carries the positive tokens expected in a probe's description of
// a compiled object and the exclusion tokens that must not appear. Targets are
// collected into an immutable Registry that is built once at startup.
package arch

import (
	"errors"
	"strings"
)

// ABI identifies a target architecture (Android ABI naming).
type ABI string

const (
	ABIArm64  ABI = "arm64-v8a"
	ABIArmV7  ABI = "armeabi-v7a"
	ABIX86_64 ABI = "x86_64"
	ABIX86    ABI = "x86"
)

// String returns the string representation of the ABI
func (a ABI) String() string {
	return string(a)
}

var (
	ErrUnsupportedTarget = errors.New("unsupported target architecture")
	ErrInvalidTarget     = errors.New("invalid target definition")
)

// Verdict is the result of evaluating one probe description against a Target.
type Verdict int

const (
	// VerdictUnknown means no token of the target appeared in the description.
	VerdictUnknown Verdict = iota
	// VerdictMatch means a positive token appeared and no exclusion token did.
	VerdictMatch
	// VerdictMismatch means an exclusion token appeared.
	VerdictMismatch
)

// String returns the string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case VerdictMatch:
		return "match"
	case VerdictMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Target describes one supported architecture.
type Target struct {
	ABI     ABI      `json:"abi" yaml:"abi" toml:"abi"`
	Machine string   `json:"machine" yaml:"machine" toml:"machine"` // canonical machine name, e.g. "aarch64"
	Bits    int      `json:"bits" yaml:"bits" toml:"bits"`          // word size, 32 or 64
	Match   []string `json:"match" yaml:"match" toml:"match"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	// Samples are representative probe outputs for objects of this target.
	// They decide which foreign tokens can safely be excluded and are used
	// to validate the registry.
	Samples []string `json:"-" yaml:"-" toml:"-"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty" toml:"aliases,omitempty"`
}

// Evaluate compares a probe description against the target's tokens.
// Matching is case-insensitive; any exclusion token forces a mismatch even
// when a positive token is also present.
func (t Target) Evaluate(description string) Verdict {
	desc := strings.ToLower(description)
	for _, tok := range t.Exclude {
		if strings.Contains(desc, tok) {
			return VerdictMismatch
		}
	}
	for _, tok := range t.Match {
		if strings.Contains(desc, tok) {
			return VerdictMatch
		}
	}
	return VerdictUnknown
}

func (t Target) clone() Target {
	t.Match = append([]string(nil), t.Match...)
	t.Exclude = append([]string(nil), t.Exclude...)
	t.Samples = append([]string(nil), t.Samples...)
	t.Aliases = append([]string(nil), t.Aliases...)
	return t
}

// widthTokens returns the tokens that betray an object of the opposite word size.
func widthTokens(bits int) []string {
	if bits == 64 {
		return []string{"32-bit", "elf32"}
	}
	return []string{"64-bit", "elf64"}
}
