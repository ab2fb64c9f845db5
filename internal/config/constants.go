package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalArfilter = "arfilter"
	luaFieldTools     = "tools"
	luaFieldAr        = "ar"
	luaFieldFile      = "file"
	luaFieldReadelf   = "readelf"
	luaFieldJobs      = "jobs"
	luaFieldWorkDir   = "workdir"
	luaFieldStateDir  = "state_dir"
	luaFieldLog       = "log"
	luaFieldLevel     = "level"
	luaFieldColor     = "color"
	luaFieldTargets   = "targets"
	luaFieldABI       = "abi"
	luaFieldArch      = "arch"
	luaFieldBits      = "bits"
	luaFieldMatch     = "match"
	luaFieldExclude   = "exclude"
	luaFieldSamples   = "samples"
	luaFieldAliases   = "aliases"
	luaFieldArchives  = "archives"
	luaFieldPath      = "path"
)

// Resource limits
const (
	MaxConfigSize       = 1 << 20 // bytes
	DefaultParseTimeout = 5 * time.Second
	MaxJobs             = 256
	MaxTargetCount      = 64
	MaxArchiveCount     = 1000

	luaCallStackSize = 256
	luaRegistrySize  = 8 * 1024
)

// Environment variables read by the CLI.
const (
	EnvConfig   = "ARFILTER_CONFIG"
	EnvStateDir = "ARFILTER_STATE_DIR"
)

// DefaultConfigName is the file looked for in the working directory when
// neither --config nor ARFILTER_CONFIG is given.
const DefaultConfigName = "arfilter.lua"
