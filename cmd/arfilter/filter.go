package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/config"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/filter"
)

// runFilter handles `arfilter filter`.
func (a *app) runFilter(ctx context.Context, args []string) int {
	fs := a.newFlagSet("filter", "filter [flags] [-t <abi> <archive>...]")
	var common commonFlags
	common.register(fs)
	target := fs.StringP("target", "t", "", "target ABI or alias for the archives given as arguments")
	dryRun := fs.BoolP("dry-run", "n", false, "classify members without rebuilding")
	if code, done := a.parse(fs, args); done {
		return code
	}

	s, err := a.load(ctx, fs, &common)
	if err != nil {
		return a.configError(err, common.verbose)
	}

	jobs, err := filterJobs(fs.Args(), *target, s.cfg.Archives)
	if err != nil {
		return a.usageError("%v", err)
	}

	f, err := filter.NewFromConfig(s.cfg, a.runner, s.log, filter.WithDryRun(*dryRun))
	if err != nil {
		return a.configError(err, common.verbose)
	}

	results, _ := f.RunAll(ctx, jobs)
	if err := s.out.Results(results); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
	return filter.Worst(results).ExitCode()
}

// filterJobs pairs archive arguments with --target, or falls back to the
// archives declared in the config.
func filterJobs(archives []string, target string, declared []config.ArchiveSpec) ([]filter.Job, error) {
	switch {
	case len(archives) > 0 && target == "":
		return nil, errors.New("--target is required when archives are given")
	case len(archives) == 0 && target != "":
		return nil, errors.New("--target needs at least one archive argument")
	case len(archives) == 0 && len(declared) == 0:
		return nil, errors.New("no archives given and none declared in the config")
	}

	var jobs []filter.Job
	for _, a := range archives {
		jobs = append(jobs, filter.Job{Archive: a, Target: target})
	}
	if len(archives) == 0 {
		for _, d := range declared {
			jobs = append(jobs, filter.Job{Archive: d.Path, Target: d.ABI})
		}
	}
	return jobs, nil
}
