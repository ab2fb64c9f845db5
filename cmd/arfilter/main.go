package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/toolexec"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// app carries the process boundaries so subcommands can be tested without
// real binutils.
type app struct {
	stdout io.Writer
	stderr io.Writer
	runner toolexec.Runner
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{stdout: os.Stdout, stderr: os.Stderr, runner: toolexec.NewExecRunner()}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.printUsage(a.stdout)
		return exitOK
	}

	switch args[0] {
	case "--version", "version":
		fmt.Fprintf(a.stdout, "arfilter %s\n", Version)
		return exitOK
	case "--help", "-h", "help":
		a.printUsage(a.stdout)
		return exitOK
	case "filter":
		return a.runFilter(ctx, args[1:])
	case "classify":
		return a.runClassify(ctx, args[1:])
	case "targets":
		return a.runTargets(ctx, args[1:])
	case "recover":
		return a.runRecover(ctx, args[1:])
	case "config":
		return a.runConfig(ctx, args[1:])
	default:
		fmt.Fprintf(a.stderr, "Error: unknown command: %s\n\n", args[0])
		a.printUsage(a.stderr)
		return exitUsage
	}
}

func (a *app) printUsage(w io.Writer) {
	fmt.Fprintln(w, "arfilter - remove foreign-architecture objects from static archives")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  arfilter filter -t <abi> <archive>...   Filter archives to one target")
	fmt.Fprintln(w, "  arfilter filter                        Filter the archives declared in the config")
	fmt.Fprintln(w, "  arfilter classify -t <abi> <object>...  Classify loose object files")
	fmt.Fprintln(w, "  arfilter targets                       List supported targets")
	fmt.Fprintln(w, "  arfilter recover [archive...]          Restore archives from interrupted rebuilds")
	fmt.Fprintln(w, "  arfilter config                        Show the effective config and archive status")
	fmt.Fprintln(w, "  arfilter --version                     Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'arfilter <command> --help' for command flags.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit status: 0 success or nothing to do, 1 failure, 2 configuration or usage error.")
}
