//go:build ignore

// genman generates the ioload man page.
// Usage: go run cmd/genman/main.go > ioload.1
package main

import (
	"fmt"
	"os"
)

func main() {
	// Use a fixed date for reproducible builds/CI
	date := "August 2026"

	manpage := fmt.Sprintf(`.TH IOLOAD 1 "%s" "ioload 0.1.0" "User Commands"
.SH NAME
ioload \- periodic serial I/O load generator with latency instrumentation
.SH SYNOPSIS
.B ioload
[\fIflags\fR]
.SH DESCRIPTION
.B ioload
transmits a fixed-size message over a serial device (or a self-allocated
PTY) at a fixed period, measures how late each transmit-completion arrives
relative to its planned release time, and periodically prints aggregate
latency statistics.
.PP
Planned release times form an exact arithmetic progression rather than
"now + period", so scheduling jitter never compounds into the measurement
baseline.
.SH OPTIONS
.TP
.BR \-D ", " \-\-device " \fIpath\fR"
Serial device to write to. When omitted, ioload allocates a PTY pair and
prints the slave path so a reader can attach.
.TP
.BR \-b ", " \-\-baud " \fIbits/sec\fR"
Line rate used to pace transmissions (0 disables pacing).
.TP
.B \-\-bits\-per\-byte \fIn\fR
Wire bits per byte; default 10 for 8N1 framing.
.TP
.BR \-l ", " \-\-len " \fIbytes\fR"
Fixed message length. Messages are padded so transmission time is constant.
.TP
.B \-\-period \fIduration\fR
Release period (default 10ms).
.TP
.B \-\-startup\-delay \fIduration\fR
Delay before the first release (default 100ms).
.TP
.B \-\-report \fIduration\fR
Latency report interval (default 1s).
.TP
.B \-\-hz \fIfreq\fR
Cycle counter frequency (default 1000000, one cycle per microsecond).
.TP
.BR \-t ", " \-\-duration " \fIduration\fR"
Stop after this long; 0 runs until SIGINT/SIGTERM.
.TP
.B \-\-wait\-dtr
Wait for an attached terminal to raise DTR before starting.
.TP
.B \-\-dtr\-timeout \fIduration\fR
Give up on DTR after this long; 0 waits forever (default 30s).
.TP
.BR \-p ", " \-\-profile " \fIname\fR"
Device preset; see \fB\-\-list\-profiles\fR.
.SH OUTPUT
One report line per interval on stderr, either
.B "I/O latency: collecting..."
before any sample, or
.B "<n> samples, min=<v>us, avg=<v>us, max=<v>us".
.SH EXAMPLES
.TP
PTY loopback with defaults:
.B ioload
.TP
Real device, wait for a terminal, stop after a minute:
.B ioload \-D /dev/ttyUSB0 \-\-wait\-dtr \-t 1m
.TP
Slow link preset:
.B ioload \-p 9600
.SH SEE ALSO
.BR stty (1),
.BR cat (1)
`, date)

	fmt.Print(manpage)
	os.Exit(0)
}
