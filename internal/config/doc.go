// Package config loads arfilter's optional Lua configuration.
//
// A config file declares a global `arfilter` table. It runs in a sandboxed
// gopher-lua VM with a read-only `platform` table, so it can branch on the
// host but cannot touch the filesystem, the environment or other processes:
//
//	arfilter = {
//	  tools = {
//	    ar      = platform.is_macos and "llvm-ar" or "ar",
//	    readelf = platform.is_macos and "llvm-readelf" or "readelf",
//	  },
//	  jobs = 4,
//	  log = { level = "debug" },
//	  targets = {
//	    {
//	      abi = "riscv64", arch = "riscv64", bits = 64,
//	      match = { "risc-v" },
//	      samples = { "ELF 64-bit LSB relocatable, UCB RISC-V, double-float ABI" },
//	    },
//	  },
//	  archives = {
//	    { path = "out/arm64-v8a/lib/libcrypto.a", abi = "arm64-v8a" },
//	    { path = "out/x86_64/lib/libcrypto.a",    abi = "x86_64" },
//	  },
//	}
//
// Every field is optional. Command-line flags override the file.
//
// # Resource limits
//
// A config file is at most MaxConfigSize bytes and must finish evaluating
// within DefaultParseTimeout unless the caller's context carries its own
// deadline. The Lua call stack is bounded, so runaway recursion fails
// with an error instead of exhausting memory.
//
// # Errors
//
// Lua runtime and syntax errors are returned as *ParseError; schema
// violations (wrong types, unknown log levels, invalid targets, archives
// naming an unsupported ABI) as *ValidationError. Both unwrap to their
// cause, so errors.Is(err, arch.ErrUnsupportedTarget) works on a config
// that names an unknown ABI.
package config
