package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/filter"
)

// runClassify handles `arfilter classify`. Exit status is 1 when any
// object does not belong to the target.
func (a *app) runClassify(ctx context.Context, args []string) int {
	fs := a.newFlagSet("classify", "classify [flags] -t <abi> <object>...")
	var common commonFlags
	common.register(fs)
	target := fs.StringP("target", "t", "", "target ABI or alias")
	if code, done := a.parse(fs, args); done {
		return code
	}
	if *target == "" {
		return a.usageError("--target is required")
	}
	if fs.NArg() == 0 {
		return a.usageError("no object files given")
	}

	s, err := a.load(ctx, fs, &common)
	if err != nil {
		return a.configError(err, common.verbose)
	}
	f, err := filter.NewFromConfig(s.cfg, a.runner, s.log)
	if err != nil {
		return a.configError(err, common.verbose)
	}

	results, err := f.ClassifyFiles(ctx, *target, fs.Args())
	if err != nil {
		if errors.Is(err, arch.ErrUnsupportedTarget) {
			return a.configError(err, common.verbose)
		}
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if err := s.out.Objects(*target, results); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	for _, r := range results {
		if !r.Classification.Compatible {
			return exitFailure
		}
	}
	return exitOK
}
