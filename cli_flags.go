// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"

	"github.com/ktelemetry/kstat/aggregate"
	"github.com/ktelemetry/kstat/collector"
	"github.com/ktelemetry/kstat/sampler"
	"github.com/ktelemetry/kstat/support"
)

const (
	// Default values for CLI flags
	defaultArgProgressInterval = 1 * time.Second
	defaultArgPeriodMs         = 1000
	defaultArgPollTimeout      = 100 * time.Millisecond
	defaultArgPerCPUPages      = 64

	envVarPrefix = "KSTAT"
)

// Help strings for command line arguments
var (
	bpfDirHelp              = "Directory holding the compiled kernel objects (*.bpf.o)."
	bpfVerifierLogLevelHelp = fmt.Sprintf("Log level of the eBPF verifier output (0..%d).",
		collector.MaxBPFVerifierLogLevel)
	configHelp               = "Plain text configuration file, one `flag value` pair per line."
	metricsHelp              = "Log the internal metrics collected through OpenTelemetry on exit."
	noKernelVersionCheckHelp = "Disable checking kernel version for eBPF support. " +
		"Use at your own risk, to run on older kernels with backported eBPF features."
	verboseModeHelp = "Enable verbose logging."
	versionHelp     = "Show version."

	cgroupHelp   = "Only trace tasks of this cgroup v2 directory."
	durationHelp = "Stop on its own after this duration, 0 runs until interrupted."
	sortHelp     = "Rank rows by `count` or `elapsed` time."
	groupByHelp  = "Group counters by `syscall` number or by `thread`."
	topHelp      = "Only report the first N rows, 0 reports all."
	intervalHelp = "Time between two progress dots."

	modeHelp       = "Charted metric: `bytes`, `count` or `average` bytes per request."
	periodHelp     = "Sampling period in milliseconds."
	cumulativeHelp = "Chart the running sum instead of per period values, bytes and count modes only."
	heightHelp     = "Chart height in lines, 0 picks one from the data."
	widthHelp      = "Chart width in columns, 0 uses one column per sample."

	failedHelp  = "Also report unshare calls that failed."
	timeoutHelp = "Upper bound of every wait for events."
	pagesHelp   = "Size of each per CPU event buffer in pages, a power of two."
	ringBufHelp = "Submit events through a shared ring buffer (Linux 5.8+) " +
		"instead of per CPU perf buffers."
)

// arguments holds the parsed command line.
type arguments struct {
	bpfDir               string
	bpfVerifierLogLevel  uint
	config               string
	metrics              bool
	noKernelVersionCheck bool
	verboseMode          bool
	version              bool

	syscalls syscallsArgs
	biograph biographArgs
	unshare  unshareArgs

	flagSets []*flag.FlagSet
}

type syscallsArgs struct {
	cgroup   string
	sortBy   aggregate.SortBy
	groupBy  aggregate.GroupBy
	top      int
	interval time.Duration
	duration time.Duration
}

type biographArgs struct {
	cgroup     string
	mode       sampler.Mode
	periodMs   uint
	cumulative bool
	height     int
	width      int
	duration   time.Duration
}

type unshareArgs struct {
	failed  bool
	timeout time.Duration
	pages   int
	ringBuf bool
}

// enumFlag adapts the parse function of an enumeration to flag.Value.
type enumFlag[T fmt.Stringer] struct {
	v     *T
	parse func(string) (T, error)
}

func (f enumFlag[T]) String() string {
	if f.v == nil {
		return ""
	}
	return (*f.v).String()
}

func (f enumFlag[T]) Set(s string) error {
	v, err := f.parse(s)
	if err != nil {
		return err
	}
	*f.v = v
	return nil
}

func (args *arguments) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	args.flagSets = append(args.flagSets, fs)
	return fs
}

// newRootCommand wires the flags of all subcommands into args.
func (args *arguments) newRootCommand() *ffcli.Command {
	fs := args.newFlagSet("kstat")

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.StringVar(&args.bpfDir, "bpf-dir", support.DefaultDir, bpfDirHelp)
	fs.UintVar(&args.bpfVerifierLogLevel, "bpf-log-level", 0, bpfVerifierLogLevelHelp)
	fs.StringVar(&args.config, "config", "", configHelp)
	fs.BoolVar(&args.metrics, "metrics", false, metricsHelp)
	fs.BoolVar(&args.noKernelVersionCheck, "no-kernel-version-check", false,
		noKernelVersionCheckHelp)
	fs.BoolVar(&args.verboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.verboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&args.version, "version", false, versionHelp)

	return &ffcli.Command{
		Name:       "kstat",
		ShortUsage: "kstat [flags] <subcommand> [flags]",
		ShortHelp:  "Kernel telemetry collectors",
		FlagSet:    fs,
		Options: []ff.Option{
			ff.WithEnvVarPrefix(envVarPrefix),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithAllowMissingConfigFile(true),
		},
		Subcommands: []*ffcli.Command{
			args.newSyscallsCmd(),
			args.newBIOGraphCmd(),
			args.newUnshareSnoopCmd(),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}

func (args *arguments) newSyscallsCmd() *ffcli.Command {
	a := &args.syscalls
	a.groupBy = aggregate.BySyscall
	a.sortBy = aggregate.ByCount

	fs := args.newFlagSet("syscalls")
	fs.StringVar(&a.cgroup, "cgroup", "", cgroupHelp)
	fs.DurationVar(&a.duration, "duration", 0, durationHelp)
	fs.Var(enumFlag[aggregate.GroupBy]{&a.groupBy, aggregate.ParseGroupBy}, "group-by",
		groupByHelp)
	fs.DurationVar(&a.interval, "interval", defaultArgProgressInterval, intervalHelp)
	fs.Var(enumFlag[aggregate.SortBy]{&a.sortBy, aggregate.ParseSortBy}, "sort", sortHelp)
	fs.IntVar(&a.top, "top", 0, topHelp)

	return &ffcli.Command{
		Name:       "syscalls",
		ShortUsage: "kstat syscalls [flags]",
		ShortHelp:  "Count and time system calls until interrupted",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envVarPrefix)},
		Exec: func(ctx context.Context, _ []string) error {
			return collector.SyscallStats(ctx, &collector.SyscallsConfig{
				Common:     args.common(),
				CgroupPath: a.cgroup,
				GroupBy:    a.groupBy,
				SortBy:     a.sortBy,
				Top:        a.top,
				Interval:   a.interval,
				Duration:   a.duration,
			})
		},
	}
}

func (args *arguments) newBIOGraphCmd() *ffcli.Command {
	a := &args.biograph
	a.mode = sampler.Bytes

	fs := args.newFlagSet("biograph")
	fs.StringVar(&a.cgroup, "cgroup", "", cgroupHelp)
	fs.BoolVar(&a.cumulative, "cumulative", false, cumulativeHelp)
	fs.DurationVar(&a.duration, "duration", 0, durationHelp)
	fs.IntVar(&a.height, "height", 0, heightHelp)
	fs.Var(enumFlag[sampler.Mode]{&a.mode, sampler.ParseMode}, "mode", modeHelp)
	fs.UintVar(&a.periodMs, "period", defaultArgPeriodMs, periodHelp)
	fs.IntVar(&a.width, "width", 0, widthHelp)

	return &ffcli.Command{
		Name:       "biograph",
		ShortUsage: "kstat biograph [flags]",
		ShortHelp:  "Chart block I/O over time until interrupted",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envVarPrefix)},
		Exec: func(ctx context.Context, _ []string) error {
			return collector.IOGraph(ctx, &collector.BIOGraphConfig{
				Common:     args.common(),
				CgroupPath: a.cgroup,
				Mode:       a.mode,
				Period:     time.Duration(a.periodMs) * time.Millisecond,
				Cumulative: a.cumulative,
				Height:     a.height,
				Width:      a.width,
				Duration:   a.duration,
			})
		},
	}
}

func (args *arguments) newUnshareSnoopCmd() *ffcli.Command {
	a := &args.unshare

	fs := args.newFlagSet("unsharesnoop")
	fs.BoolVar(&a.failed, "failed", false, failedHelp)
	fs.IntVar(&a.pages, "pages", defaultArgPerCPUPages, pagesHelp)
	fs.BoolVar(&a.ringBuf, "ringbuf", false, ringBufHelp)
	fs.DurationVar(&a.timeout, "timeout", defaultArgPollTimeout, timeoutHelp)

	return &ffcli.Command{
		Name:       "unsharesnoop",
		ShortUsage: "kstat unsharesnoop [flags]",
		ShortHelp:  "Trace unshare(2) calls until interrupted",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envVarPrefix)},
		Exec: func(ctx context.Context, _ []string) error {
			return collector.UnshareSnoop(ctx, &collector.UnshareConfig{
				Common:            args.common(),
				Failed:            a.failed,
				PollTimeout:       a.timeout,
				PerCPUBufferPages: a.pages,
				RingBuffer:        a.ringBuf,
			})
		},
	}
}

func (args *arguments) common() collector.Common {
	return collector.Common{
		BPFDir:              args.bpfDir,
		BPFVerifierLogLevel: uint32(args.bpfVerifierLogLevel),
	}
}

// dump visits all flag sets, and dumps them all to debug.
// Used for verbose mode logging.
func (args *arguments) dump() {
	log.Debug("Config:")
	for _, fs := range args.flagSets {
		fs.VisitAll(func(f *flag.Flag) {
			log.Debugf("%s.%s: %v", fs.Name(), f.Name, f.Value)
		})
	}
}
