package platform

import (
	"strings"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
)

// familyMap maps distribution names to their canonical family names.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
}

// normalizeArch folds uname-style names onto GOARCH names. Unknown
// architectures are returned lowercased.
func normalizeArch(a string) string {
	switch a = strings.ToLower(strings.TrimSpace(a)); a {
	case "x86_64", "x86-64":
		return "amd64"
	case "aarch64":
		return "arm64"
	case "i386", "i686":
		return "386"
	case "armv7", "armv7l":
		return "arm"
	default:
		return a
	}
}

// hostABI maps a normalized architecture to the Android ABI built for it.
func hostABI(a string) string {
	name := a
	if a == "386" {
		name = "i386"
	}
	t, err := arch.Builtin().Lookup(name)
	if err != nil {
		return ""
	}
	return string(t.ABI)
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	if canonical, ok := familyMap[normalizePlatform(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}
