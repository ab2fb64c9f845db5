package platform

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if info.Arch == "" {
		t.Error("Arch should not be empty")
	}

	// Platform may be empty on Linux (graceful fallback), but if set the
	// family must be too.
	if info.Platform != "" && info.Family == "" {
		t.Error("Family should be set when Platform is set")
	}
	if runtime.GOOS != "linux" && info.Platform != "" {
		t.Errorf("Platform should be empty on non-Linux, got %v", info.Platform)
	}
}

func TestDetect(t *testing.T) {
	ubuntu := func(ctx context.Context) (string, string, string, error) {
		return "Ubuntu", "debian", " 22.04 ", nil
	}
	broken := func(ctx context.Context) (string, string, string, error) {
		return "", "", "", errors.New("no os-release")
	}

	tests := []struct {
		name         string
		goos, goarch string
		platformInfo platformInfoFunc
		want         Info
	}{
		{
			name: "linux amd64 with distro",
			goos: "linux", goarch: "amd64",
			platformInfo: ubuntu,
			want: Info{OS: "linux", Arch: "amd64", ArchRaw: "amd64", HostABI: "x86_64",
				Platform: "ubuntu", Family: FamilyDebian, Version: "22.04"},
		},
		{
			name: "linux distro detection fails",
			goos: "linux", goarch: "arm64",
			platformInfo: broken,
			want:         Info{OS: "linux", Arch: "arm64", ArchRaw: "arm64", HostABI: "arm64-v8a"},
		},
		{
			name: "darwin skips distro",
			goos: "darwin", goarch: "arm64",
			platformInfo: ubuntu,
			want:         Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64", HostABI: "arm64-v8a"},
		},
		{
			name: "32-bit x86",
			goos: "linux", goarch: "386",
			platformInfo: broken,
			want:         Info{OS: "linux", Arch: "386", ArchRaw: "386", HostABI: "x86"},
		},
		{
			name: "host without an android abi",
			goos: "linux", goarch: "riscv64",
			platformInfo: broken,
			want:         Info{OS: "linux", Arch: "riscv64", ArchRaw: "riscv64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detect(context.Background(), tt.goos, tt.goarch, tt.platformInfo)
			if err != nil {
				t.Fatalf("detect() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("detect() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := detect(ctx, "linux", "amd64", func(ctx context.Context) (string, string, string, error) {
		return "", "", "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("detect() error = %v, want context.Canceled", err)
	}
}

func TestStaticDetector(t *testing.T) {
	want := &Info{OS: "linux", Arch: "arm64"}
	got, err := StaticDetector{Info: want}.Detect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got.OS = "changed"
	if want.OS != "linux" {
		t.Error("StaticDetector returned its own Info instead of a copy")
	}
}
