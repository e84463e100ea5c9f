package ai

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// spinnerFrames defines the animation frames for the spinner
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const redrawInterval = 100 * time.Millisecond

// progress implements ProgressIndicator with a spinner animation and ESC
// key cancellation.
type progress struct {
	mu          sync.Mutex
	writer      io.Writer
	message     string
	startTime   time.Time
	running     bool
	cancelChan  chan bool
	stopChan    chan struct{}
	doneChan    chan struct{}
	spinnerIdx  int
	lastLineLen int
}

// NewProgressIndicator creates a new progress indicator
func NewProgressIndicator() ProgressIndicator {
	return &progress{
		writer:     os.Stderr,
		cancelChan: make(chan bool, 1),
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins showing progress with the given message. A stopped
// indicator can be started again; each run gets fresh channels.
func (p *progress) Start(message string) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.message = message
	p.startTime = time.Now()
	p.spinnerIdx = 0
	p.lastLineLen = 0
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	stop, done := p.stopChan, p.doneChan
	p.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(redrawInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.redraw()
			}
		}
	}()
}

// Update updates the progress message
func (p *progress) Update(message string) {
	p.mu.Lock()
	p.message = message
	p.mu.Unlock()
}

// Stop halts the animation, waits for the display goroutine to exit and
// erases the spinner line. Stopping an idle indicator is a no-op.
func (p *progress) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stopChan, p.doneChan
	p.mu.Unlock()

	close(stop)
	<-done

	p.mu.Lock()
	p.eraseLocked()
	p.mu.Unlock()
}

// WaitForCancellation returns a channel that receives true when user cancels
func (p *progress) WaitForCancellation(ctx context.Context) <-chan bool {
	p.mu.Lock()
	stop := p.stopChan
	p.mu.Unlock()
	go p.watchForESC(ctx, stop)
	return p.cancelChan
}

// redraw writes one animation frame with the elapsed time.
func (p *progress) redraw() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	frame := spinnerFrames[p.spinnerIdx%len(spinnerFrames)]
	p.spinnerIdx++

	line := fmt.Sprintf("\r%s %s [%s] (Press ESC to cancel)",
		frame, p.message, formatElapsed(time.Since(p.startTime)))
	if len(line) < p.lastLineLen {
		p.eraseLocked()
	}
	p.lastLineLen = len(line)

	fmt.Fprint(p.writer, line) //nolint:errcheck // display only
}

// eraseLocked blanks the spinner line. Callers hold p.mu.
func (p *progress) eraseLocked() {
	fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", p.lastLineLen)) //nolint:errcheck // display only
}

// watchForESC polls stdin for the ESC byte while the indicator runs. It
// only engages when stdin is a real terminal.
func (p *progress) watchForESC(ctx context.Context, stop <-chan struct{}) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return
	}
	defer term.Restore(fd, oldState) //nolint:errcheck // best effort

	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		// Deadline reads keep the loop responsive to ctx and stop.
		if err := os.Stdin.SetReadDeadline(time.Now().Add(redrawInterval)); err != nil {
			continue
		}
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			continue
		}

		if buf[0] == 27 { // ESC
			select {
			case p.cancelChan <- true:
			default:
			}
			return
		}
	}
}

// formatElapsed renders a duration as MM:SS, growing to HH:MM:SS past an
// hour.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	hours, minutes, seconds := total/3600, total/60%60, total%60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
