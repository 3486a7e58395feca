package connect

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"fleetcli/internal/device"
	"fleetcli/internal/logging"
	"fleetcli/internal/session"
)

type fakeSession struct {
	port   int
	closed bool
}

func (s *fakeSession) RunQuery(ctx context.Context, command string) (string, error) {
	return fmt.Sprintf("output from port %d", s.port), nil
}

func (s *fakeSession) CommitConfig(ctx context.Context, command string) error {
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeOpener succeeds on ports listed in succeed and fails everywhere else,
// recording the attempt order.
type fakeOpener struct {
	succeed  map[int]bool
	failWith map[int]error
	attempts []int
}

func (o *fakeOpener) Open(ctx context.Context, host string, port int, creds session.Credentials, logger *logging.Logger) (session.Session, error) {
	o.attempts = append(o.attempts, port)
	if o.succeed[port] {
		return &fakeSession{port: port}, nil
	}
	if err := o.failWith[port]; err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("dial tcp: connection refused")
}

func newTestStrategy(opener session.Opener) *Strategy {
	s := NewStrategy(opener, logging.NewLoggerFromConfig("error", "text", true))
	s.Probe = false // unit tests never touch the network
	return s
}

func TestConnectFallsBackInOrder(t *testing.T) {
	opener := &fakeOpener{succeed: map[int]bool{22: true}}
	strategy := newTestStrategy(opener)

	dev := device.Device{Name: "edge-nyc-01", Host: "10.0.0.1"}
	sess, port, failure := strategy.Connect(context.Background(), dev, session.Credentials{})
	if failure != nil {
		t.Fatalf("Connect failed: %v", failure)
	}
	defer sess.Close()

	if port != 22 {
		t.Errorf("port = %d, want 22", port)
	}
	wantAttempts := []int{session.NetconfPort, 22}
	if len(opener.attempts) != len(wantAttempts) {
		t.Fatalf("attempts = %v, want %v", opener.attempts, wantAttempts)
	}
	for i, want := range wantAttempts {
		if opener.attempts[i] != want {
			t.Errorf("attempt %d = %d, want %d", i, opener.attempts[i], want)
		}
	}
}

func TestConnectStopsAtFirstSuccess(t *testing.T) {
	opener := &fakeOpener{succeed: map[int]bool{session.NetconfPort: true, 22: true}}
	strategy := newTestStrategy(opener)

	dev := device.Device{Name: "edge-nyc-01", Host: "10.0.0.1"}
	sess, port, failure := strategy.Connect(context.Background(), dev, session.Credentials{})
	if failure != nil {
		t.Fatalf("Connect failed: %v", failure)
	}
	defer sess.Close()

	if port != session.NetconfPort {
		t.Errorf("port = %d, want %d", port, session.NetconfPort)
	}
	if len(opener.attempts) != 1 {
		t.Errorf("attempts = %v, want only the first port", opener.attempts)
	}
}

func TestConnectAggregatesAllFailureReasons(t *testing.T) {
	opener := &fakeOpener{
		failWith: map[int]error{
			session.NetconfPort: fmt.Errorf("dial tcp: connection refused"),
			22:                  fmt.Errorf("ssh: unable to authenticate"),
		},
	}
	strategy := newTestStrategy(opener)

	dev := device.Device{Name: "edge-nyc-01", Host: "10.0.0.1"}
	sess, _, failure := strategy.Connect(context.Background(), dev, session.Credentials{})
	if sess != nil {
		t.Fatal("expected no session")
	}
	if failure == nil {
		t.Fatal("expected aggregated failure")
	}

	if len(failure.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(failure.Attempts))
	}

	ports := failure.AttemptedPorts()
	if ports[0] != session.NetconfPort || ports[1] != 22 {
		t.Errorf("attempted ports = %v, want [%d 22]", ports, session.NetconfPort)
	}

	msg := failure.Error()
	for _, want := range []string{"connection refused", "unable to authenticate", "port 830", "port 22"} {
		if !strings.Contains(msg, want) {
			t.Errorf("failure message %q missing %q", msg, want)
		}
	}
}

func TestConnectNoPortRetried(t *testing.T) {
	opener := &fakeOpener{}
	strategy := newTestStrategy(opener)
	strategy.Ports = []int{830, 22, 2222}

	dev := device.Device{Name: "edge-nyc-01", Host: "10.0.0.1"}
	_, _, failure := strategy.Connect(context.Background(), dev, session.Credentials{})
	if failure == nil {
		t.Fatal("expected failure")
	}

	seen := make(map[int]int)
	for _, p := range opener.attempts {
		seen[p]++
	}
	for port, n := range seen {
		if n != 1 {
			t.Errorf("port %d attempted %d times, want 1", port, n)
		}
	}
}
