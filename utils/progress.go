// Package utils provides small terminal helpers for the command line tool.
package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	successColor = "\x1b[32m"
	resetColor   = "\x1b[0m"
)

var spinnerFrames = []rune(`⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏`)

// ProgressIndicator renders a spinner on stderr while a long
// running operation is in flight.
type ProgressIndicator struct {
	mu       sync.Mutex
	writer   io.Writer
	message  string
	interval time.Duration
	active   bool
	done     chan struct{}

	// StopMsg is printed after the spinner is cleared.
	StopMsg string
}

// NewProgressIndicator creates a spinner with the given message and
// frame interval.
func NewProgressIndicator(msg string, interval time.Duration) *ProgressIndicator {
	return &ProgressIndicator{
		writer:   os.Stderr,
		message:  msg,
		interval: interval,
	}
}

// Start begins rendering the spinner. Calling Start on a running
// indicator is a no-op.
func (pi *ProgressIndicator) Start() {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.active {
		return
	}
	pi.active = true
	pi.done = make(chan struct{})

	go pi.run(pi.done)
}

// Stop halts the spinner, clears the current line and prints StopMsg
// when set.
func (pi *ProgressIndicator) Stop() {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if !pi.active {
		return
	}
	pi.active = false
	close(pi.done)

	fmt.Fprint(pi.writer, "\r\033[K")
	if len(pi.StopMsg) > 0 {
		fmt.Fprint(pi.writer, pi.StopMsg)
	}
}

func (pi *ProgressIndicator) run(done chan struct{}) {
	ticker := time.NewTicker(pi.interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			pi.mu.Lock()
			if pi.active {
				fmt.Fprintf(pi.writer, "\r%s %s%c%s", pi.message,
					successColor, spinnerFrames[frame], resetColor)
			}
			pi.mu.Unlock()
			frame = (frame + 1) % len(spinnerFrames)
		}
	}
}
