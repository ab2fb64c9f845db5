package arch

import "fmt"

// Representative `readelf -h` output. Only the fields that differ between
// architectures are filled in; the rest is what binutils prints for a
// relocatable object.
const readelfTemplate = `ELF Header:
  Magic:   7f 45 4c 46 %s 01 01 00 00 00 00 00 00 00 00 00
  Class:                             %s
  Data:                              2's complement, little endian
  Version:                           1 (current)
  OS/ABI:                            UNIX - System V
  ABI Version:                       0
  Type:                              REL (Relocatable file)
  Machine:                           %s
  Version:                           0x1
  Entry point address:               0x0
  Start of program headers:          0 (bytes into file)
  Flags:                             %s
  Number of program headers:         0
  Section header string table index: 1
`

// builtinTargets are the four Android ABIs. Exclusion tokens listed here are
// extended symmetrically by NewRegistry.
func builtinTargets() []Target {
	return []Target{
		{
			ABI:     ABIArm64,
			Machine: "aarch64",
			Bits:    64,
			Match:   []string{"aarch64", "arm64"},
			Samples: []string{
				"ELF 64-bit LSB relocatable, ARM aarch64, version 1 (SYSV), not stripped",
				"Mach-O 64-bit object arm64",
				readelfSample("02", "ELF64", "AArch64", "0x0"),
			},
			Aliases: []string{"arm64", "aarch64", "armv8", "armv8-a"},
		},
		{
			ABI:     ABIArmV7,
			Machine: "arm",
			Bits:    32,
			Match:   []string{"arm, eabi", "arm"},
			Samples: []string{
				"ELF 32-bit LSB relocatable, ARM, EABI5 version 1 (SYSV), not stripped",
				readelfSample("01", "ELF32", "ARM", "0x5000000, Version5 EABI"),
			},
			Aliases: []string{"arm", "armv7", "armv7-a", "armeabi"},
		},
		{
			ABI:     ABIX86_64,
			Machine: "x86_64",
			Bits:    64,
			Match:   []string{"x86-64", "x86_64"},
			Samples: []string{
				"ELF 64-bit LSB relocatable, x86-64, version 1 (SYSV), not stripped",
				"Mach-O 64-bit object x86_64",
				readelfSample("02", "ELF64", "Advanced Micro Devices X86-64", "0x0"),
			},
			Aliases: []string{"amd64", "x86-64", "x64"},
		},
		{
			ABI:     ABIX86,
			Machine: "i686",
			Bits:    32,
			Match:   []string{"intel 80386", "i386", "i686"},
			Samples: []string{
				"ELF 32-bit LSB relocatable, Intel 80386, version 1 (SYSV), not stripped",
				readelfSample("01", "ELF32", "Intel 80386", "0x0"),
			},
			Aliases: []string{"i386", "i686", "ia32"},
		},
	}
}

func readelfSample(class, className, machine, flags string) string {
	return fmt.Sprintf(readelfTemplate, class, className, machine, flags)
}
