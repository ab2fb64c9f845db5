package arch

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry is an immutable lookup table of targets keyed by ABI and alias.
// It is safe for concurrent use.
type Registry struct {
	targets map[ABI]Target
	aliases map[string]ABI
	order   []ABI
}

// Builtin returns the registry of the four built-in Android ABIs.
var Builtin = sync.OnceValue(func() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(fmt.Sprintf("arch: builtin registry invalid: %v", err))
	}
	return r
})

// NewRegistry builds a registry from the built-in targets plus any custom
// targets. Custom targets must not reuse a built-in ABI or alias.
//
// Exclusion tokens are generalized symmetrically: every target excludes the
// positive tokens of every other target that never occur in its own samples,
// and the tokens of the opposite word size. Construction fails unless each
// target accepts all of its own samples and rejects every other target's.
func NewRegistry(custom ...Target) (*Registry, error) {
	defs := append(builtinTargets(), custom...)

	r := &Registry{
		targets: make(map[ABI]Target, len(defs)),
		aliases: make(map[string]ABI),
		order:   make([]ABI, 0, len(defs)),
	}

	normalized := make([]Target, 0, len(defs))
	for _, def := range defs {
		t, err := normalizeTarget(def)
		if err != nil {
			return nil, err
		}
		if _, dup := r.targets[t.ABI]; dup {
			return nil, fmt.Errorf("%w: duplicate abi %q", ErrInvalidTarget, t.ABI)
		}
		r.targets[t.ABI] = t
		r.order = append(r.order, t.ABI)
		normalized = append(normalized, t)
	}

	for i := range normalized {
		normalized[i].Exclude = deriveExclusions(normalized[i], normalized)
		r.targets[normalized[i].ABI] = normalized[i]
	}

	for _, t := range normalized {
		for _, name := range append([]string{string(t.ABI)}, t.Aliases...) {
			key := normalizeName(name)
			if owner, ok := r.aliases[key]; ok && owner != t.ABI {
				return nil, fmt.Errorf("%w: name %q used by both %s and %s", ErrInvalidTarget, name, owner, t.ABI)
			}
			r.aliases[key] = t.ABI
		}
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup resolves an ABI name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (Target, error) {
	abi, ok := r.aliases[normalizeName(name)]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedTarget, name, strings.Join(r.Names(), ", "))
	}
	return r.targets[abi].clone(), nil
}

// Targets returns copies of all targets in registration order.
func (r *Registry) Targets() []Target {
	out := make([]Target, 0, len(r.order))
	for _, abi := range r.order {
		out = append(out, r.targets[abi].clone())
	}
	return out
}

// Names returns the registered ABI identifiers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, abi := range r.order {
		names = append(names, string(abi))
	}
	return names
}

// Identify returns the first target that matches the description.
func (r *Registry) Identify(description string) (ABI, bool) {
	for _, abi := range r.order {
		if r.targets[abi].Evaluate(description) == VerdictMatch {
			return abi, true
		}
	}
	return "", false
}

func (r *Registry) validate() error {
	for _, abi := range r.order {
		t := r.targets[abi]
		for _, sample := range t.Samples {
			if v := t.Evaluate(sample); v != VerdictMatch {
				return fmt.Errorf("%w: %s does not recognize its own sample %q (%s)", ErrInvalidTarget, abi, firstLine(sample), v)
			}
		}
		for _, other := range r.order {
			if other == abi {
				continue
			}
			for _, sample := range r.targets[other].Samples {
				if t.Evaluate(sample) == VerdictMatch {
					return fmt.Errorf("%w: %s accepts %s sample %q", ErrInvalidTarget, abi, other, firstLine(sample))
				}
			}
		}
	}
	return nil
}

func normalizeTarget(t Target) (Target, error) {
	t = t.clone()
	t.ABI = ABI(strings.TrimSpace(string(t.ABI)))
	if t.ABI == "" {
		return Target{}, fmt.Errorf("%w: abi is required", ErrInvalidTarget)
	}
	if t.Bits != 32 && t.Bits != 64 {
		return Target{}, fmt.Errorf("%w: %s: bits must be 32 or 64, got %d", ErrInvalidTarget, t.ABI, t.Bits)
	}
	t.Match = normalizeTokens(t.Match)
	if len(t.Match) == 0 {
		return Target{}, fmt.Errorf("%w: %s: at least one match token is required", ErrInvalidTarget, t.ABI)
	}
	if len(t.Samples) == 0 {
		return Target{}, fmt.Errorf("%w: %s: at least one sample description is required", ErrInvalidTarget, t.ABI)
	}
	t.Exclude = normalizeTokens(t.Exclude)
	if t.Machine == "" {
		t.Machine = string(t.ABI)
	}
	return t, nil
}

// deriveExclusions extends t's explicit exclusions with foreign match tokens
// absent from t's samples and the opposite word-size tokens.
func deriveExclusions(t Target, all []Target) []string {
	excl := append([]string(nil), t.Exclude...)
	excl = append(excl, widthTokens(t.Bits)...)
	for _, other := range all {
		if other.ABI == t.ABI {
			continue
		}
		for _, tok := range other.Match {
			if slices.Contains(t.Match, tok) || samplesContain(t.Samples, tok) {
				continue
			}
			excl = append(excl, tok)
		}
	}
	return normalizeTokens(excl)
}

func samplesContain(samples []string, tok string) bool {
	for _, s := range samples {
		if strings.Contains(strings.ToLower(s), tok) {
			return true
		}
	}
	return false
}

func normalizeTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
