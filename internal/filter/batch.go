package filter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// Job is one archive/target pair of a batch.
type Job struct {
	Archive string `json:"archive" yaml:"archive" toml:"archive"`
	Target  string `json:"target" yaml:"target" toml:"target"`
}

// RunAll filters each job in order. Jobs are independent: a failure in one
// does not stop the rest. The returned error joins every job's error.
func (f *Filter) RunAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, 0, len(jobs))
	var errs []error
	for _, job := range jobs {
		res, err := f.Run(ctx, job.Archive, job.Target)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s (%s): %w", job.Archive, job.Target, err))
		}
	}
	return results, errors.Join(errs...)
}

// ClassifyFiles classifies loose object files against a target without
// touching any archive.
func (f *Filter) ClassifyFiles(ctx context.Context, targetName string, paths []string) ([]ObjectResult, error) {
	target, err := f.registry.Lookup(targetName)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrObjectNotFound, err)
		}
	}

	out := make([]ObjectResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.jobs)
	for i, p := range paths {
		g.Go(func() error {
			c, err := f.classifier.Classify(gctx, p, target)
			if err != nil {
				return err
			}
			out[i] = ObjectResult{Path: p, Classification: c}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, o := range out {
		for _, name := range o.Classification.Missing {
			if !seen[name] {
				seen[name] = true
				f.log.Warn("probe tool not found", "probe", name)
			}
		}
	}
	return out, nil
}
