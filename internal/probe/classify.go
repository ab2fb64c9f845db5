package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/logging"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/toolexec"
)

// ReasonFailOpen is the reason given when no probe could decide.
const ReasonFailOpen = "classification failed, assumed compatible"

// Outcome is how a classification was reached.
type Outcome int

const (
	OutcomeUnavailable Outcome = iota
	OutcomeMatch
	OutcomeMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeMismatch:
		return "mismatch"
	default:
		return "unavailable"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "match":
		*o = OutcomeMatch
	case "mismatch":
		*o = OutcomeMismatch
	case "unavailable":
		*o = OutcomeUnavailable
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Classification is the verdict for one object file.
type Classification struct {
	Compatible bool    `json:"compatible" yaml:"compatible" toml:"compatible"`
	Outcome    Outcome `json:"outcome" yaml:"outcome" toml:"outcome"`
	// Probe is the probe that decided; empty when none could.
	Probe string `json:"probe,omitempty" yaml:"probe,omitempty" toml:"probe,omitempty"`
	// Detected is the registered ABI the description matched, if any.
	Detected string `json:"detected,omitempty" yaml:"detected,omitempty" toml:"detected,omitempty"`
	Reason   string `json:"reason" yaml:"reason" toml:"reason"`
	// Errors lists why each probe was unavailable.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty" toml:"errors,omitempty"`
	// Missing names the probes whose tool is not installed, whether or not
	// a later probe decided.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty" toml:"missing,omitempty"`
}

// Classifier runs probes in order until one gives a verdict.
type Classifier struct {
	probes   []Probe
	registry *arch.Registry
	log      logging.Logger
}

// NewClassifier creates a classifier. The registry is used to name the
// detected architecture.
func NewClassifier(registry *arch.Registry, log logging.Logger, probes ...Probe) *Classifier {
	if registry == nil {
		registry = arch.Builtin()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Classifier{probes: probes, registry: registry, log: log}
}

// Classify decides whether the object at path belongs to target.
//
// The first probe that produces a description decides: the object is
// compatible only if the description carries one of the target's tokens
// and none of its exclusions. A probe that fails is skipped. If every probe
// fails, the object is reported compatible. The only error returned is the
// context's.
func (c *Classifier) Classify(ctx context.Context, path string, target arch.Target) (Classification, error) {
	var errs, missing []string
	for _, p := range c.probes {
		if err := ctx.Err(); err != nil {
			return Classification{}, err
		}

		desc, err := p.Describe(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Classification{}, ctxErr
			}
			if errors.Is(err, toolexec.ErrToolNotFound) {
				missing = append(missing, p.Name())
			}
			c.log.Debug("probe unavailable", "probe", p.Name(), "path", path, "error", err)
			errs = append(errs, err.Error())
			continue
		}

		detected, _ := c.registry.Identify(desc)
		if target.Evaluate(desc) == arch.VerdictMatch {
			return Classification{
				Compatible: true,
				Outcome:    OutcomeMatch,
				Probe:      p.Name(),
				Detected:   string(detected),
				Reason:     fmt.Sprintf("%s reports %s", p.Name(), target.ABI),
				Missing:    missing,
			}, nil
		}

		found := string(detected)
		if found == "" {
			found = fmt.Sprintf("%q", firstLine(desc))
		}
		return Classification{
			Compatible: false,
			Outcome:    OutcomeMismatch,
			Probe:      p.Name(),
			Detected:   string(detected),
			Reason:     fmt.Sprintf("%s reports %s, not %s", p.Name(), found, target.ABI),
			Missing:    missing,
		}, nil
	}

	return Classification{
		Compatible: true,
		Outcome:    OutcomeUnavailable,
		Reason:     ReasonFailOpen,
		Errors:     errs,
		Missing:    missing,
	}, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
