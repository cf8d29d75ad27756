// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// kstat collects kernel telemetry with eBPF: system call statistics, block
// I/O charts and unshare(2) events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ktelemetry/kstat/collector"
	"github.com/ktelemetry/kstat/metrics"
	"github.com/ktelemetry/kstat/tracer"
	"github.com/ktelemetry/kstat/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

// Kernels older than this lack BTF enabled raw tracepoints.
const (
	minKernelMajor = 5
	minKernelMinor = 5
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	var args arguments
	root := args.newRootCommand()
	if err := root.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return parseError("Failure to parse arguments: %v", err)
	}

	if args.version {
		fmt.Println(vc.String())
		return exitSuccess
	}

	if root.FlagSet.NArg() == 0 {
		return usage(root)
	}

	if args.verboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		args.dump()
	}

	if code := sanityCheck(&args); code != exitSuccess {
		return code
	}

	// Context to drive the main goroutine, canceled on the first signal.
	mainCtx, mainCancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer mainCancel()

	log.Infof("Starting kstat %s (revision %s, build timestamp %s)",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())

	if args.metrics {
		provider := metrics.NewProvider()
		defer func() {
			ctx := context.Background()
			if err := provider.Log(ctx); err != nil {
				log.Errorf("Failed to log metrics: %v", err)
			}
			if err := provider.Shutdown(ctx); err != nil {
				log.Errorf("Failed to shut down meter provider: %v", err)
			}
		}()
	}

	if err := tracer.ProbeBPFSyscall(); err != nil {
		return failure("Failed to probe eBPF syscall: %v", err)
	}

	if err := root.Run(mainCtx); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return usage(root)
		}
		return failure("%v", err)
	}

	log.Debug("Exiting ...")
	return exitSuccess
}

func usage(root *ffcli.Command) exitCode {
	fmt.Fprintln(os.Stderr, ffcli.DefaultUsageFunc(root))
	return exitParseError
}

func sanityCheck(args *arguments) exitCode {
	if args.bpfVerifierLogLevel > collector.MaxBPFVerifierLogLevel {
		return parseError("Invalid eBPF verifier log level: %d", args.bpfVerifierLogLevel)
	}

	if args.biograph.periodMs == 0 {
		return parseError("Invalid argument for period: use a value of at least 1ms")
	}

	if !args.noKernelVersionCheck {
		major, minor, patch, err := tracer.GetCurrentKernelVersion()
		if err != nil {
			return failure("Failed to get kernel version: %v", err)
		}
		log.Debugf("Running on kernel %d.%d.%d (%s)", major, minor, patch, runtime.GOARCH)

		if major < minKernelMajor || (major == minKernelMajor && minor < minKernelMinor) {
			return failure("kstat requires kernel version "+
				"%d.%d or newer but got %d.%d.%d",
				minKernelMajor, minKernelMinor, major, minor, patch)
		}
	}

	return exitSuccess
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
