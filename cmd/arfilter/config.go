package main

import (
	"context"
	"fmt"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/config"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/report"
)

// runConfig handles `arfilter config`: it prints the effective config as
// Lua followed by the on-disk status of every declared archive.
func (a *app) runConfig(ctx context.Context, args []string) int {
	fs := a.newFlagSet("config", "config [flags]")
	var common commonFlags
	common.register(fs)
	check := fs.Bool("check", false, "exit 1 unless every declared archive is present")
	if code, done := a.parse(fs, args); done {
		return code
	}

	s, err := a.load(ctx, fs, &common)
	if err != nil {
		return a.configError(err, common.verbose)
	}

	statuses, err := config.DetectArchiveStatus(ctx, s.cfg.Archives)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	if s.format == report.FormatText {
		lua, err := config.NewGenerator().Generate(s.cfg)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return exitFailure
		}
		source := s.cfgPath
		if source == "" {
			source = "(built-in defaults)"
		}
		fmt.Fprintf(a.stdout, "-- source: %s\n%s", source, lua)
		if len(statuses) > 0 {
			fmt.Fprintln(a.stdout, "\nArchives:")
		}
	}
	if err := s.out.Archives(statuses); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	if *check {
		for _, st := range statuses {
			if st.Status != config.StatusPresent {
				return exitFailure
			}
		}
	}
	return exitOK
}
