package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows an animated progress indicator on the error writer while
// a long operation runs. It is only useful on a TTY; callers should gate
// construction on the effective mode being text.
type Spinner struct {
	w       io.Writer
	msg     string
	styles  *Styles
	mu      sync.Mutex
	done    chan struct{}
	stopped bool
}

// NewSpinner creates a spinner attached to the renderer's error writer.
func (r *Renderer) NewSpinner(msg string) *Spinner {
	return &Spinner{
		w:      r.errOut,
		msg:    msg,
		styles: r.styles,
		done:   make(chan struct{}),
	}
}

// Start begins the animation in a background goroutine.
func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		frame := 0
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], s.msg)
				}
				s.mu.Unlock()
				frame++
			}
		}
	}()
}

// Success stops the spinner and replaces it with a success line.
func (s *Spinner) Success(msg string) {
	s.finish(s.styles.StatusSuccess.String(), msg)
}

// Fail stops the spinner and replaces it with a failure line.
func (s *Spinner) Fail(msg string) {
	s.finish(s.styles.StatusFailed.String(), msg)
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	fmt.Fprintf(s.w, "\r%s\r", clearLine(len(s.msg)+2))
}

func (s *Spinner) finish(glyph, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	fmt.Fprintf(s.w, "\r%s\r%s %s\n", clearLine(len(s.msg)+2), glyph, msg)
}

func clearLine(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
