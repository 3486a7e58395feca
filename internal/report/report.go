// Package report reconciles per-device outcomes into one ordered report
// and exports it.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fleetcli/internal/device"
)

// Status is the final disposition of one device's dispatch
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Outcome is the finalized record for one device within one dispatch.
// Exactly one Outcome exists per device per run; it is immutable once added.
type Outcome struct {
	Device   device.Device
	Status   Status
	Output   string
	Err      error // Underlying failure for error outcomes (nil on success)
	Port     int   // Port the session opened on (0 when no session opened)
	Duration time.Duration
}

// Run collects the outcomes of one command across the active device set.
// Completion order is arbitrary; Outcomes always returns the order devices
// appeared in the input sequence.
type Run struct {
	order    []string
	outcomes map[string]Outcome
	mu       sync.Mutex
}

// NewRun creates a run keyed to the input device order
func NewRun(devices []device.Device) *Run {
	order := make([]string, len(devices))
	for i, d := range devices {
		order[i] = d.Name
	}
	return &Run{
		order:    order,
		outcomes: make(map[string]Outcome, len(devices)),
	}
}

// Add records one device's outcome. Safe for concurrent use.
func (r *Run) Add(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome.Device.Name] = outcome
}

// Len returns the number of outcomes recorded so far
func (r *Run) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// Outcomes returns all recorded outcomes in input device order. Devices with
// no recorded outcome are skipped, which only happens when a run was
// canceled before those devices completed.
func (r *Run) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcomes := make([]Outcome, 0, len(r.outcomes))
	for _, name := range r.order {
		if o, ok := r.outcomes[name]; ok {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

// SuccessCount returns the number of successful outcomes
func (r *Run) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes() {
		if o.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// ErrorCount returns the number of error outcomes
func (r *Run) ErrorCount() int {
	n := 0
	for _, o := range r.Outcomes() {
		if o.Status == StatusError {
			n++
		}
	}
	return n
}

var statusTitle = cases.Title(language.English)

// Render writes the run as a plain-text table in input device order. Errors
// render inline alongside successes; multi-line outputs continue under the
// output column.
func (r *Run) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "DEVICE\tSTATUS\tOUTPUT")

	for _, o := range r.Outcomes() {
		lines := strings.Split(strings.TrimRight(o.Output, "\n"), "\n")
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Device.Name, statusTitle.String(string(o.Status)), lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(tw, "\t\t%s\n", line)
		}
	}

	return tw.Flush()
}
