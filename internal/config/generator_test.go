package config

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
)

func TestGenerator_Generate_Defaults(t *testing.T) {
	out, err := NewGenerator().Generate(Default())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, want := range []string{"arfilter = {", `ar = "ar",`, `file = "file",`, `readelf = "readelf",`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"jobs", "targets", "archives", "log"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("default output should not mention %q:\n%s", unwanted, out)
		}
	}
}

func TestGenerator_RoundTrip(t *testing.T) {
	color := true
	cfg := &Config{
		Tools:    Tools{Ar: "llvm-ar", File: "file", Readelf: `C:\tools\readelf.exe`},
		Jobs:     3,
		WorkDir:  "/scratch",
		StateDir: "/state",
		Log:      LogConfig{Level: "debug", Color: &color},
		Targets: []arch.Target{{
			ABI:     "riscv64",
			Machine: "riscv64",
			Bits:    64,
			Match:   []string{"risc-v"},
			Samples: []string{`ELF 64-bit LSB relocatable, UCB RISC-V, "quoted"`},
			Aliases: []string{"rv64"},
		}},
		Archives: []ArchiveSpec{
			{Path: "/out/lib with space.a", ABI: "x86"},
			{Path: "/out/rv/lib.a", ABI: "rv64"},
		},
	}

	out, err := NewGenerator().Generate(cfg)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	parsed, err := NewParser(nil).ParseString(context.Background(), out)
	if err != nil {
		t.Fatalf("generated config does not parse: %v\n%s", err, out)
	}
	if diff := cmp.Diff(cfg, parsed); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestQuoteLuaString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", `"hello"`},
		{`say "hi"`, `"say \"hi\""`},
		{"a\nb", `"a\nb"`},
		{`C:\x`, `"C:\\x"`},
		{"tab\there", `"tab\there"`},
	}
	for _, tt := range tests {
		if got := quoteLuaString(tt.in); got != tt.want {
			t.Errorf("quoteLuaString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func FuzzGenerator_QuoteLuaString(f *testing.F) {
	f.Add("hello")
	f.Add(`say "hello"`)
	f.Add("line1\nline2")
	f.Add(`C:\\Users\\test`)

	f.Fuzz(func(t *testing.T, input string) {
		quoted := quoteLuaString(input)
		if len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
			t.Errorf("quoteLuaString(%q) = %q, invalid format", input, quoted)
		}
	})
}
