package main

import (
	"context"
	"fmt"
)

// runTargets handles `arfilter targets`.
func (a *app) runTargets(ctx context.Context, args []string) int {
	fs := a.newFlagSet("targets", "targets [flags]")
	var common commonFlags
	common.register(fs)
	if code, done := a.parse(fs, args); done {
		return code
	}
	if fs.NArg() > 0 {
		return a.usageError("targets takes no arguments")
	}

	s, err := a.load(ctx, fs, &common)
	if err != nil {
		return a.configError(err, common.verbose)
	}
	registry, err := s.cfg.Registry()
	if err != nil {
		return a.configError(err, common.verbose)
	}
	if err := s.out.Targets(registry.Targets()); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
