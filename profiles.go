//go:build !windows
// +build !windows

package main

import (
	"fmt"
	"os"
	"sort"
	"time"
)

// Profile bundles a line rate with a release period that leaves the wire
// idle between frames. Explicit flags override individual fields.
type Profile struct {
	Baud       int
	Period     time.Duration
	MessageLen int
	Note       string
}

// profiles defines presets for common device types. Periods are chosen so
// a 48-byte frame (480 wire bits at 8N1) finishes well inside one period;
// otherwise every submission after the first would hit a busy TX slot.
var profiles = map[string]Profile{
	"cdc-acm": {
		Baud:       0, // USB bulk endpoints are not clocked like a UART
		Period:     10 * time.Millisecond,
		MessageLen: 48,
		Note:       "USB CDC ACM, unpaced wire",
	},
	"115200": {
		Baud:       115200, // 48B frame ~4.2ms on the wire
		Period:     10 * time.Millisecond,
		MessageLen: 48,
		Note:       "standard fast UART",
	},
	"9600": {
		Baud:       9600, // 48B frame takes 50ms
		Period:     100 * time.Millisecond,
		MessageLen: 48,
		Note:       "classic terminal line",
	},
	"2400": {
		Baud:       2400, // 48B frame takes 200ms
		Period:     500 * time.Millisecond,
		MessageLen: 48,
		Note:       "very slow link",
	},
}

func printProfiles() {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Available profiles:")
	for _, name := range names {
		p := profiles[name]
		baud := "unpaced"
		if p.Baud > 0 {
			baud = fmt.Sprintf("%d baud", p.Baud)
		}
		fmt.Fprintf(os.Stderr, "  %-10s %s, %dB every %v (%s)\n",
			name, baud, p.MessageLen, p.Period, p.Note)
	}
}
