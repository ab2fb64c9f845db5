package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/transaction"
)

// runRecover handles `arfilter recover`. With archive arguments only their
// journals are considered; otherwise every orphan in the state directory.
func (a *app) runRecover(ctx context.Context, args []string) int {
	fs := a.newFlagSet("recover", "recover [flags] [archive...]")
	var common commonFlags
	common.register(fs)
	if code, done := a.parse(fs, args); done {
		return code
	}

	s, err := a.load(ctx, fs, &common)
	if err != nil {
		return a.configError(err, common.verbose)
	}
	stateDir := s.cfg.StateDir

	var (
		recovered []transaction.Recovery
		errs      []error
	)
	if fs.NArg() == 0 {
		recovered, err = transaction.RecoverAll(ctx, stateDir)
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, archivePath := range fs.Args() {
		recs, err := recoverArchive(ctx, stateDir, archivePath)
		recovered = append(recovered, recs...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", archivePath, err))
		}
	}

	if err := s.out.Recoveries(recovered); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error("recovery incomplete", "error", err)
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func recoverArchive(ctx context.Context, stateDir, archivePath string) ([]transaction.Recovery, error) {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, err
	}
	lock, err := transaction.AcquireLock(ctx, stateDir, abs)
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	return transaction.Recover(ctx, stateDir, abs)
}
