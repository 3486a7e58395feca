package stats

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"fleetcli/internal/device"
	"fleetcli/internal/progress"
	"fleetcli/internal/report"
)

func TestTrackerSummary(t *testing.T) {
	tracker := NewTracker(3)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		tracker.Handle(progress.Event{Device: name, Kind: progress.Started})
	}
	tracker.Handle(progress.Event{Device: "alpha", Kind: progress.Finished, Success: true})
	tracker.Handle(progress.Event{Device: "beta", Kind: progress.Finished, Success: true})
	tracker.Handle(progress.Event{Device: "gamma", Kind: progress.Finished, Success: false})

	tracker.Observe(report.Outcome{
		Device: device.Device{Name: "alpha"}, Status: report.StatusSuccess, Port: 830, Output: "version",
	})
	tracker.Observe(report.Outcome{
		Device: device.Device{Name: "beta"}, Status: report.StatusSuccess, Port: 22, Output: "version",
	})
	tracker.Observe(report.Outcome{
		Device: device.Device{Name: "gamma"}, Status: report.StatusError, Output: "Connection error",
		Err: fmt.Errorf("dial tcp 10.0.0.3:830: connect: connection refused"),
	})

	var buf bytes.Buffer
	tracker.WriteSummary(&buf)
	out := buf.String()

	for _, want := range []string{"3 devices", "2 succeeded", "1 failed", "830=1", "22=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	// The failure breakdown classifies the recorded outcome error
	if !strings.Contains(out, "1 port unreachable") {
		t.Errorf("summary missing failure breakdown:\n%s", out)
	}

	// The failed device opened no session, so no port is attributed to it
	if strings.Contains(out, " 0=") {
		t.Errorf("summary counts port 0: %s", out)
	}
}
