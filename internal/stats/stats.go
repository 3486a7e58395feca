// Package stats accumulates per-run dispatch statistics.
package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"fleetcli/internal/errors"
	"fleetcli/internal/progress"
	"fleetcli/internal/report"
)

// Tracker accumulates statistics for one dispatch run. It consumes the same
// progress event stream as the live display and additionally observes
// finalized outcomes for port usage and output volume. Purely observational;
// it never affects dispatch results.
type Tracker struct {
	startTime    time.Time
	totalDevices int
	active       int
	succeeded    int
	failed       int
	portsUsed    map[int]int
	outputBytes  int64
	failures     *errors.Collector
	mu           sync.Mutex
}

// NewTracker creates a tracker for a run over totalDevices
func NewTracker(totalDevices int) *Tracker {
	return &Tracker{
		startTime:    time.Now(),
		totalDevices: totalDevices,
		portsUsed:    make(map[int]int),
		failures:     errors.NewCollector(),
	}
}

// Handle implements progress.Reporter
func (t *Tracker) Handle(event progress.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case progress.Started:
		t.active++
	case progress.Finished:
		t.active--
		if event.Success {
			t.succeeded++
		} else {
			t.failed++
		}
	}
}

// Observe records a finalized outcome
func (t *Tracker) Observe(outcome report.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if outcome.Port != 0 {
		t.portsUsed[outcome.Port]++
	}
	t.outputBytes += int64(len(outcome.Output))
	t.failures.Add(outcome.Err)
}

// WriteSummary prints the run summary
func (t *Tracker) WriteSummary(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Round(time.Millisecond)

	fmt.Fprintf(w, "Run statistics: %d devices, %d succeeded, %d failed, %s elapsed, %d output bytes\n",
		t.totalDevices, t.succeeded, t.failed, elapsed, t.outputBytes)

	if len(t.portsUsed) > 0 {
		ports := make([]int, 0, len(t.portsUsed))
		for p := range t.portsUsed {
			ports = append(ports, p)
		}
		sort.Ints(ports)

		fmt.Fprint(w, "Sessions by port:")
		for _, p := range ports {
			fmt.Fprintf(w, " %d=%d", p, t.portsUsed[p])
		}
		fmt.Fprintln(w)
	}

	if t.failures.HasErrors() {
		fmt.Fprintf(w, "Failure breakdown: %s\n", t.failures.Summary())
	}
}
