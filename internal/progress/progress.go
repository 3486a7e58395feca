// Package progress provides live progress reporting for dispatch runs.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// EventKind discriminates progress events
type EventKind int

const (
	// Started is emitted when a device's unit of work begins
	Started EventKind = iota

	// Finished is emitted exactly once per device, after its outcome is final
	Finished
)

// Event is one dispatch progress notification. Reporters consume events to
// drive a display; they never affect dispatch outcomes.
type Event struct {
	Device  string
	Kind    EventKind
	Success bool // Meaningful only for Finished events
}

// Reporter consumes dispatch progress events
type Reporter interface {
	Handle(event Event)
}

// Multi fans events out to several reporters
type Multi []Reporter

// Handle implements Reporter
func (m Multi) Handle(event Event) {
	for _, r := range m {
		r.Handle(event)
	}
}

// Tracker renders a live per-device progress bar from the event stream
type Tracker struct {
	total     int
	active    int
	completed int
	failed    int
	startTime time.Time
	mu        sync.Mutex
	writer    io.Writer
	enabled   bool
	lastDraw  time.Time
}

// NewTracker creates a progress tracker for a run over total devices
func NewTracker(total int, writer io.Writer, enabled bool) *Tracker {
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		writer:    writer,
		enabled:   enabled,
	}
}

// Handle implements Reporter
func (t *Tracker) Handle(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case Started:
		t.active++
	case Finished:
		t.active--
		if event.Success {
			t.completed++
		} else {
			t.failed++
		}
	}

	if t.enabled {
		t.draw()
	}
}

// Finish completes the progress display and shows final stats
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enabled {
		t.drawFinal()
	}
}

// draw renders the current progress bar
func (t *Tracker) draw() {
	now := time.Now()
	// Throttle updates to avoid excessive output
	if now.Sub(t.lastDraw) < 100*time.Millisecond {
		return
	}
	t.lastDraw = now

	done := t.completed + t.failed
	if t.total == 0 {
		return
	}

	percentage := float64(done) / float64(t.total) * 100
	elapsed := now.Sub(t.startTime)

	barWidth := 40
	filled := int(float64(barWidth) * percentage / 100)
	bar := ""
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}

	fmt.Fprintf(t.writer, "\r[%s] %.1f%% (%d/%d) active:%d ✓%d ✗%d [%v]",
		bar, percentage, done, t.total, t.active, t.completed, t.failed,
		elapsed.Round(time.Second))
}

// drawFinal renders the final progress summary
func (t *Tracker) drawFinal() {
	done := t.completed + t.failed
	elapsed := time.Since(t.startTime)

	fmt.Fprintf(t.writer, "\r%s\r", fmt.Sprintf("%100s", ""))

	if t.failed == 0 {
		fmt.Fprintf(t.writer, "✓ Completed %d/%d devices successfully in %v\n",
			t.completed, t.total, elapsed.Round(time.Second))
	} else {
		fmt.Fprintf(t.writer, "⚠ Completed %d/%d devices (%d successful, %d failed) in %v\n",
			done, t.total, t.completed, t.failed, elapsed.Round(time.Second))
	}
}
