package arch

import (
	"errors"
	"slices"
	"testing"
)

func TestBuiltinRegistry(t *testing.T) {
	r := Builtin()

	want := []string{"arm64-v8a", "armeabi-v7a", "x86_64", "x86"}
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	if Builtin() != r {
		t.Error("Builtin() should return the same registry on every call")
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ABI
		wantErr bool
	}{
		{name: "exact abi", input: "arm64-v8a", want: ABIArm64},
		{name: "upper case", input: "ARMEABI-V7A", want: ABIArmV7},
		{name: "surrounding space", input: "  x86_64 ", want: ABIX86_64},
		{name: "alias aarch64", input: "aarch64", want: ABIArm64},
		{name: "alias amd64", input: "amd64", want: ABIX86_64},
		{name: "alias i686", input: "i686", want: ABIX86},
		{name: "alias armv7", input: "armv7", want: ABIArmV7},
		{name: "unknown", input: "mips", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Builtin().Lookup(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedTarget) {
					t.Fatalf("Lookup(%q) error = %v, want ErrUnsupportedTarget", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) unexpected error: %v", tt.input, err)
			}
			if got.ABI != tt.want {
				t.Errorf("Lookup(%q) = %s, want %s", tt.input, got.ABI, tt.want)
			}
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	a, err := Builtin().Lookup("x86")
	if err != nil {
		t.Fatal(err)
	}
	a.Match[0] = "tampered"
	a.Exclude = nil

	b, err := Builtin().Lookup("x86")
	if err != nil {
		t.Fatal(err)
	}
	if b.Match[0] == "tampered" || len(b.Exclude) == 0 {
		t.Error("mutating a looked-up target changed the registry")
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		target ABI
		desc   string
		want   Verdict
	}{
		{"arm64 file output", ABIArm64, "ELF 64-bit LSB relocatable, ARM aarch64, version 1 (SYSV), not stripped", VerdictMatch},
		{"arm64 rejects x86-64", ABIArm64, "ELF 64-bit LSB relocatable, x86-64, version 1 (SYSV)", VerdictMismatch},
		{"arm64 rejects armv7", ABIArm64, "ELF 32-bit LSB relocatable, ARM, EABI5 version 1 (SYSV)", VerdictMismatch},
		{"armv7 file output", ABIArmV7, "ELF 32-bit LSB relocatable, ARM, EABI5 version 1 (SYSV)", VerdictMatch},
		{"armv7 rejects aarch64", ABIArmV7, "ELF 64-bit LSB relocatable, ARM aarch64, version 1 (SYSV)", VerdictMismatch},
		{"x86_64 file output", ABIX86_64, "ELF 64-bit LSB relocatable, x86-64, version 1 (SYSV)", VerdictMatch},
		{"x86_64 rejects i386", ABIX86_64, "ELF 32-bit LSB relocatable, Intel 80386, version 1 (SYSV)", VerdictMismatch},
		{"x86_64 rejects x32", ABIX86_64, "ELF 32-bit LSB relocatable, x86-64, version 1 (SYSV)", VerdictMismatch},
		{"x86_64 rejects arm", ABIX86_64, "ELF 64-bit LSB relocatable, ARM aarch64", VerdictMismatch},
		{"x86 file output", ABIX86, "ELF 32-bit LSB relocatable, Intel 80386, version 1 (SYSV)", VerdictMatch},
		{"x86 rejects x86-64", ABIX86, "ELF 64-bit LSB relocatable, x86-64", VerdictMismatch},
		{"case insensitive", ABIX86_64, "ELF 64-BIT LSB RELOCATABLE, X86-64", VerdictMatch},
		{"unrelated description", ABIArm64, "ASCII text", VerdictUnknown},
		{"empty description", ABIX86, "", VerdictUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Builtin().Lookup(string(tt.target))
			if err != nil {
				t.Fatal(err)
			}
			if got := target.Evaluate(tt.desc); got != tt.want {
				t.Errorf("Evaluate(%q) = %s, want %s", tt.desc, got, tt.want)
			}
		})
	}
}

func TestEvaluateExclusionOverridesMatch(t *testing.T) {
	target := Target{
		ABI:     "custom",
		Match:   []string{"alpha"},
		Exclude: []string{"beta"},
	}
	if got := target.Evaluate("alpha and beta"); got != VerdictMismatch {
		t.Errorf("Evaluate() = %s, want mismatch when both positive and negative tokens appear", got)
	}
}

// Every target must reject every other target's representative output, in
// both directions, for both probe formats.
func TestExclusionsAreSymmetric(t *testing.T) {
	targets := Builtin().Targets()
	for _, a := range targets {
		for _, b := range targets {
			if a.ABI == b.ABI {
				continue
			}
			for _, sample := range b.Samples {
				if v := a.Evaluate(sample); v == VerdictMatch {
					t.Errorf("%s accepts %s sample %q", a.ABI, b.ABI, firstLine(sample))
				}
			}
		}
	}
}

func TestIdentify(t *testing.T) {
	abi, ok := Builtin().Identify("ELF 32-bit LSB relocatable, Intel 80386")
	if !ok || abi != ABIX86 {
		t.Errorf("Identify() = %q, %v; want x86, true", abi, ok)
	}

	if _, ok := Builtin().Identify("LLVM IR bitcode"); ok {
		t.Error("Identify() should not recognize bitcode")
	}
}

func TestNewRegistryCustomTarget(t *testing.T) {
	riscv := Target{
		ABI:     "riscv64",
		Machine: "riscv64",
		Bits:    64,
		Match:   []string{"RISC-V"},
		Samples: []string{"ELF 64-bit LSB relocatable, UCB RISC-V, RVC, double-float ABI, version 1 (SYSV)"},
		Aliases: []string{"rv64"},
	}

	r, err := NewRegistry(riscv)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	got, err := r.Lookup("rv64")
	if err != nil {
		t.Fatalf("Lookup(rv64) error = %v", err)
	}
	if got.Evaluate(riscv.Samples[0]) != VerdictMatch {
		t.Error("custom target should match its own sample")
	}

	// Built-ins pick up the new target's tokens as exclusions.
	x64, _ := r.Lookup("x86_64")
	if !slices.Contains(x64.Exclude, "risc-v") {
		t.Errorf("x86_64 exclusions %v should contain risc-v", x64.Exclude)
	}

	// The built-in registry is not affected.
	if _, err := Builtin().Lookup("riscv64"); !errors.Is(err, ErrUnsupportedTarget) {
		t.Error("custom target leaked into the builtin registry")
	}
}

func TestNewRegistryRejectsInvalidTargets(t *testing.T) {
	tests := []struct {
		name   string
		target Target
	}{
		{"missing abi", Target{Bits: 64, Match: []string{"x"}, Samples: []string{"x"}}},
		{"bad bits", Target{ABI: "odd", Bits: 16, Match: []string{"odd"}, Samples: []string{"odd"}}},
		{"no match tokens", Target{ABI: "none", Bits: 64, Samples: []string{"none"}}},
		{"no samples", Target{ABI: "nos", Bits: 64, Match: []string{"nos"}}},
		{"duplicate abi", Target{ABI: "x86", Bits: 32, Match: []string{"x"}, Samples: []string{"ELF 32-bit x"}}},
		{"alias collision", Target{ABI: "other", Bits: 64, Match: []string{"zz9"}, Samples: []string{"ELF 64-bit zz9"}, Aliases: []string{"amd64"}}},
		{"sample rejected by itself", Target{ABI: "self", Bits: 64, Match: []string{"self"}, Samples: []string{"ELF 32-bit self"}}},
		{"overlaps another target", Target{ABI: "greedy", Bits: 64, Match: []string{"x86-64"}, Samples: []string{"ELF 64-bit LSB relocatable, x86-64, greedy"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.target)
			if !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("NewRegistry() error = %v, want ErrInvalidTarget", err)
			}
		})
	}
}
