// verify_stream consumes the ioload frame stream and checks it from the
// receiver's side: fixed frame length, parseable header, monotonic
// sequence numbers, and inter-arrival timing.
//
// Usage: ioload & cat /dev/pts/N | go run cmd/verify_stream/main.go [frame-len]
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

func main() {
	frameLen := 48
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "invalid frame length: %s\n", os.Args[1])
			os.Exit(1)
		}
		frameLen = n
	}

	frame := make([]byte, frameLen)

	// Read the first frame to prime the clock (ignore startup latency).
	if _, err := io.ReadFull(os.Stdin, frame); err != nil {
		fmt.Fprintln(os.Stderr, "no complete frame received")
		os.Exit(1)
	}
	prev := time.Now()
	badFrames := 0
	lastSeq, bad := parseSeq(frame)
	if bad {
		badFrames++
	}

	count := 0
	gaps := 0
	var sum time.Duration
	var min, max time.Duration
	min = 100 * time.Second // Start high

	for {
		if _, err := io.ReadFull(os.Stdin, frame); err != nil {
			break
		}
		now := time.Now()
		delta := now.Sub(prev)
		prev = now

		sum += delta
		if delta < min {
			min = delta
		}
		if delta > max {
			max = delta
		}
		count++

		seq, bad := parseSeq(frame)
		if bad {
			badFrames++
			continue
		}
		if lastSeq >= 0 && seq != lastSeq+1 {
			gaps++
		}
		lastSeq = seq
	}

	if count == 0 {
		fmt.Fprintln(os.Stderr, "only one frame received, nothing to measure")
		os.Exit(1)
	}

	avg := sum / time.Duration(count)
	fmt.Printf("Frames: %d | Min: %v | Max: %v | Avg: %v\n", count+1, min, max, avg)
	if gaps > 0 {
		fmt.Printf("Sequence gaps: %d (frames dropped at the sender)\n", gaps)
	}
	if badFrames > 0 {
		fmt.Printf("Unparseable frames: %d\n", badFrames)
	}
}

// parseSeq extracts the sequence number from an "IO seq=N cyc=M" frame.
// Returns -1 and true when the header does not match.
func parseSeq(frame []byte) (int, bool) {
	var seq, cyc uint32
	if _, err := fmt.Sscanf(string(frame), "IO seq=%d cyc=%d", &seq, &cyc); err != nil {
		return -1, true
	}
	return int(seq), false
}
