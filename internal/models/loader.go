package models

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Loader is a lightweight CLI spinner shown while a bootstrap stage waits on
// an external system (ARM pollers, GitHub API calls). Start/Stop are
// idempotent; the spinner runs on its own goroutine with cooperative shutdown.
//
//	l := models.NewLoader(os.Stdout, "Creating storage account...")
//	l.Start()
//	// external call
//	l.StopWithMessage("✅ Storage account ready")
type Loader struct {
	mu           sync.Mutex
	msg          string
	frames       []string
	interval     time.Duration
	out          io.Writer
	stopCh       chan struct{}
	doneCh       chan struct{}
	active       bool
	supportsANSI bool
}

// Option configures the loader.
type Option func(*Loader)

// WithInterval sets the frame interval.
func WithInterval(d time.Duration) Option { return func(l *Loader) { l.interval = d } }

// WithANSI forces ANSI on/off (useful for tests or specific terminals).
func WithANSI(enabled bool) Option { return func(l *Loader) { l.supportsANSI = enabled } }

// NewLoader creates a loader with sensible defaults.
func NewLoader(out io.Writer, message string, opts ...Option) *Loader {
	l := &Loader{
		msg:          message,
		frames:       []string{"⠋", "⠙", "⠚", "⠞", "⠖", "⠦", "⠴", "⠲", "⠳", "⠓"},
		interval:     90 * time.Millisecond,
		out:          out,
		supportsANSI: runtime.GOOS != "windows",
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	if l.out == nil {
		l.out = os.Stdout
	}
	for _, opt := range opts {
		opt(l)
	}
	if !l.supportsANSI {
		l.frames = []string{"-", "\\", "|", "/"}
	}
	return l
}

// Start begins the spinner. Repeated calls are ignored.
func (l *Loader) Start() {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return
	}
	l.active = true
	stopCh := l.stopCh
	doneCh := l.doneCh
	supports := l.supportsANSI
	out := l.out
	interval := l.interval
	frames := append([]string(nil), l.frames...)
	l.mu.Unlock()

	go func() {
		defer close(doneCh)
		i := 0
		for {
			select {
			case <-stopCh:
				if supports {
					fmt.Fprint(out, "\r\x1b[2K")
				} else {
					fmt.Fprint(out, "\r")
				}
				return
			default:
				frame := frames[i%len(frames)]
				i++
				l.mu.Lock()
				msg := l.msg
				l.mu.Unlock()
				if supports {
					fmt.Fprintf(out, "\r\x1b[2K\x1b[36m%s\x1b[0m %s", frame, msg)
				} else {
					fmt.Fprintf(out, "\r%s %s", frame, msg)
				}
				time.Sleep(interval)
			}
		}
	}()
}

// Stop stops the spinner and clears the line.
func (l *Loader) Stop() {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.active = false
	close(l.stopCh)
	done := l.doneCh
	l.mu.Unlock()
	<-done
}

// StopWithMessage stops the spinner and prints a final status line.
func (l *Loader) StopWithMessage(finalMsg string) {
	l.Stop()
	if strings.TrimSpace(finalMsg) != "" {
		fmt.Fprintln(l.out, finalMsg)
	}
}

// SetMessage updates the message displayed after the spinner.
func (l *Loader) SetMessage(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msg = m
}
