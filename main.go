//go:build !windows
// +build !windows

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

var version = "0.1.0"

// Defaults for the load shape. All of these are init-time configuration;
// there is no runtime reconfiguration.
const (
	defaultMessageLen   = 48 // fixed so TX time is stable
	defaultBaud         = 115200
	defaultBitsPerByte  = 10 // 8N1 serial: 1 start + 8 data + 1 stop
	defaultPeriod       = 10 * time.Millisecond
	defaultReportEvery  = 1 * time.Second
	defaultStartupDelay = 100 * time.Millisecond
	defaultDTRTimeout   = 30 * time.Second
	dtrPollInterval     = 50 * time.Millisecond
)

// Config holds all command-line configuration.
type Config struct {
	// Device
	Device      string // tty path; empty allocates a PTY pair
	Baud        int    // line rate in bits/sec; 0 = unpaced
	BitsPerByte int

	// Load shape
	MessageLen   int
	Period       time.Duration
	StartupDelay time.Duration

	// Reporting
	ReportEvery time.Duration
	CycleHz     uint64

	// Run control
	Duration   time.Duration // 0 = run until signalled
	WaitDTR    bool
	DTRTimeout time.Duration // 0 = wait forever

	// Misc
	Profile      string
	Help         bool
	Version      bool
	ListProfiles bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Version {
		fmt.Printf("ioload %s\n", version)
		os.Exit(0)
	}

	if cfg.ListProfiles {
		printProfiles()
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

func parseFlags(args []string) (*Config, error) {
	cfg := &Config{
		Baud:         defaultBaud,
		BitsPerByte:  defaultBitsPerByte,
		MessageLen:   defaultMessageLen,
		Period:       defaultPeriod,
		StartupDelay: defaultStartupDelay,
		ReportEvery:  defaultReportEvery,
		CycleHz:      defaultCycleHz,
		DTRTimeout:   defaultDTRTimeout,
	}

	fs := flag.NewFlagSet("ioload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.SortFlags = false // Preserve definition order in help

	fs.StringVarP(&cfg.Device, "device", "D", "", "Serial device to write to (default: allocate a PTY)")
	fs.IntVarP(&cfg.Baud, "baud", "b", defaultBaud, "Line rate in bits/sec (0 = unpaced)")
	fs.IntVar(&cfg.BitsPerByte, "bits-per-byte", defaultBitsPerByte, "Bits per byte on the wire (default 10 for 8N1)")
	fs.IntVarP(&cfg.MessageLen, "len", "l", defaultMessageLen, "Fixed message length in bytes")
	fs.DurationVar(&cfg.Period, "period", defaultPeriod, "Release period")
	fs.DurationVar(&cfg.StartupDelay, "startup-delay", defaultStartupDelay, "Delay before the first release")
	fs.DurationVar(&cfg.ReportEvery, "report", defaultReportEvery, "Latency report interval")
	fs.Uint64Var(&cfg.CycleHz, "hz", defaultCycleHz, "Cycle counter frequency")
	fs.DurationVarP(&cfg.Duration, "duration", "t", 0, "Stop after this long (0 = run until signalled)")
	fs.BoolVar(&cfg.WaitDTR, "wait-dtr", false, "Wait for an attached terminal to raise DTR before starting")
	fs.DurationVar(&cfg.DTRTimeout, "dtr-timeout", defaultDTRTimeout, "Give up on DTR after this long (0 = wait forever)")
	fs.StringVarP(&cfg.Profile, "profile", "p", "", "Device profile (see below)")
	fs.BoolVarP(&cfg.Help, "help", "h", false, "Show help")
	fs.BoolVarP(&cfg.Version, "version", "v", false, "Show version")
	fs.BoolVarP(&cfg.ListProfiles, "list-profiles", "L", false, "List available profiles")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "ioload - periodic serial I/O load generator with latency instrumentation")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Transmits fixed-size messages at a fixed period and reports how late each")
		fmt.Fprintln(os.Stderr, "transmit completion arrives relative to its planned release time.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: ioload [flags]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  ioload                               # PTY loopback, 48B every 10ms")
		fmt.Fprintln(os.Stderr, "  ioload -D /dev/ttyUSB0 --wait-dtr    # real device, wait for a terminal")
		fmt.Fprintln(os.Stderr, "  ioload -p 9600 -t 30s                # slow link preset, stop after 30s")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Profiles:")
		fmt.Fprintln(os.Stderr, "  USB:    cdc-acm")
		fmt.Fprintln(os.Stderr, "  Serial: 115200, 9600, 2400")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Help {
		fs.Usage()
		return cfg, flag.ErrHelp
	}

	// Apply the profile first; explicit flags override its values.
	if cfg.Profile != "" {
		p, ok := profiles[cfg.Profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile: %s", cfg.Profile)
		}
		if !fs.Changed("baud") {
			cfg.Baud = p.Baud
		}
		if !fs.Changed("period") {
			cfg.Period = p.Period
		}
		if !fs.Changed("len") {
			cfg.MessageLen = p.MessageLen
		}
	}

	if cfg.BitsPerByte <= 0 {
		return nil, fmt.Errorf("invalid --bits-per-byte: %d", cfg.BitsPerByte)
	}
	if cfg.MessageLen <= 0 || cfg.MessageLen > maxFrameLen {
		return nil, fmt.Errorf("invalid --len: %d (must be 1..%d)", cfg.MessageLen, maxFrameLen)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("invalid --period: %v", cfg.Period)
	}
	if cfg.ReportEvery <= 0 {
		return nil, fmt.Errorf("invalid --report: %v", cfg.ReportEvery)
	}
	if cfg.CycleHz == 0 || cfg.CycleHz > maxCycleHz {
		return nil, fmt.Errorf("invalid --hz: %d (must be 1..%d)", cfg.CycleHz, uint64(maxCycleHz))
	}

	return cfg, nil
}

// run is the startup sequencer: enable and bind the transport, optionally
// wait for a terminal, register the completion handler, reset the
// accumulator, arm the generator and the reporter, then idle until the
// run ends.
func run(cfg *Config) int {
	var bytesPerSec int64
	if cfg.Baud > 0 {
		bytesPerSec = int64(cfg.Baud / cfg.BitsPerByte)
	}

	tr := newTTYTransport(bytesPerSec)
	if err := tr.Enable(); err != nil {
		fmt.Fprintf(os.Stderr, "error: enable transport: %v\n", err)
		return 1
	}
	if err := tr.Bind(cfg.Device); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer tr.Close()

	if name := tr.SlaveName(); name != "" {
		fmt.Fprintf(os.Stderr, "writing to %s (read it with e.g.: cat %s)\n", name, name)
	}

	if cfg.WaitDTR {
		if err := waitDTR(tr, cfg.DTRTimeout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	clock := newWallClock(cfg.CycleHz)
	stats := NewAccumulator()
	gen := NewGenerator(clock, tr, stats, GeneratorConfig{
		MessageLen:   cfg.MessageLen,
		Period:       cfg.Period,
		StartupDelay: cfg.StartupDelay,
	})
	tr.SetCompletionHandler(gen.OnTxComplete)
	stats.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gen.Arm(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer gen.Disarm()

	crlf := term.IsTerminal(int(os.Stderr.Fd()))
	rep := NewReporter(stats, os.Stderr, cfg.ReportEvery, crlf)
	rep.Arm(ctx)
	defer rep.Disarm()

	fmt.Fprintf(os.Stderr, "I/O load started: %dB every %v\n", cfg.MessageLen, cfg.Period)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var timeout <-chan time.Time
	if cfg.Duration > 0 {
		timer := time.NewTimer(cfg.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-sigCh:
	case <-timeout:
	}

	rep.Disarm()
	gen.Disarm()

	fmt.Fprintf(os.Stderr, "final: %s\n", formatReport(stats.Snapshot()))
	if n := gen.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "dropped submissions: %d\n", n)
	}
	return 0
}

// waitDTR polls the transport's DTR line until a terminal attaches, so
// the first releases are not measured against a wire nobody is draining.
// A zero timeout waits indefinitely.
func waitDTR(tr Transport, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		ready, err := tr.DTRReady()
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for DTR", timeout)
		}
		time.Sleep(dtrPollInterval)
	}
}
