// Package connect implements the per-device port-fallback connection strategy.
package connect

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"fleetcli/internal/device"
	"fleetcli/internal/errors"
	"fleetcli/internal/logging"
	"fleetcli/internal/session"
)

// DefaultPorts is the default candidate port order: NETCONF first, SSH CLI second
var DefaultPorts = []int{session.NetconfPort, 22}

// DefaultProbeTimeout bounds the cheap TCP reachability probe per port
const DefaultProbeTimeout = 5 * time.Second

// Attempt records one failed connection attempt on one candidate port
type Attempt struct {
	Port   int
	Reason *errors.ClassifiedError
}

// Failure aggregates all failed attempts when every candidate port is
// exhausted. It carries the union of per-port reasons, not just the last.
type Failure struct {
	Device   device.Device
	Attempts []Attempt
}

// Error implements the error interface
func (f *Failure) Error() string {
	parts := make([]string, 0, len(f.Attempts))
	for _, a := range f.Attempts {
		parts = append(parts, fmt.Sprintf("port %d: %s (%s)", a.Port, a.Reason.Error(), a.Reason.Type))
	}
	return fmt.Sprintf("all candidate ports failed: %s", strings.Join(parts, "; "))
}

// AttemptedPorts returns the ports tried, in attempt order
func (f *Failure) AttemptedPorts() []int {
	ports := make([]int, len(f.Attempts))
	for i, a := range f.Attempts {
		ports[i] = a.Port
	}
	return ports
}

// Strategy tries ordered candidate ports and returns the first session that
// opens. Each dispatch gets a fresh attempt order; nothing is remembered
// between commands.
type Strategy struct {
	Ports        []int
	Probe        bool          // TCP reachability pre-check before full session open
	ProbeTimeout time.Duration
	Opener       session.Opener
	Logger       *logging.Logger
}

// NewStrategy creates a strategy with the default port order and probe enabled
func NewStrategy(opener session.Opener, logger *logging.Logger) *Strategy {
	return &Strategy{
		Ports:        DefaultPorts,
		Probe:        true,
		ProbeTimeout: DefaultProbeTimeout,
		Opener:       opener,
		Logger:       logger,
	}
}

// Connect tries each candidate port strictly in order and returns the first
// successfully opened session along with the port it opened on. When every
// port fails it returns a Failure carrying all per-port reasons. A port is
// never retried, and ports are never reordered within one dispatch.
func (s *Strategy) Connect(ctx context.Context, dev device.Device, creds session.Credentials) (session.Session, int, *Failure) {
	ports := s.Ports
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	var attempts []Attempt

	for _, port := range ports {
		attemptLogger := s.attemptLogger(dev, port)
		if attemptLogger != nil {
			attemptLogger.Debug("attempting connection")
		}

		if s.Probe {
			if err := probePort(ctx, dev.Host, port, s.probeTimeout()); err != nil {
				reason := errors.NewUnreachableError(
					fmt.Sprintf("port unreachable: %v", err), err)
				if attemptLogger != nil {
					attemptLogger.LogAttemptError(reason)
				}
				attempts = append(attempts, Attempt{Port: port, Reason: reason})
				continue
			}
		}

		start := time.Now()
		sess, err := s.Opener.Open(ctx, dev.Host, port, creds, attemptLogger)
		if err != nil {
			reason := errors.Classify(err)
			if attemptLogger != nil {
				attemptLogger.LogAttemptError(reason)
			}
			attempts = append(attempts, Attempt{Port: port, Reason: reason})
			continue
		}

		if attemptLogger != nil {
			attemptLogger.LogSessionOpen(time.Since(start))
		}
		return sess, port, nil
	}

	return nil, 0, &Failure{Device: dev, Attempts: attempts}
}

func (s *Strategy) attemptLogger(dev device.Device, port int) *logging.Logger {
	if s.Logger == nil {
		return nil
	}
	return s.Logger.With("device", dev.Name, "host", dev.Host, "port", port)
}

func (s *Strategy) probeTimeout() time.Duration {
	if s.ProbeTimeout > 0 {
		return s.ProbeTimeout
	}
	return DefaultProbeTimeout
}

// probePort short-circuits an unreachable port without the cost of a full
// protocol handshake
func probePort(ctx context.Context, host string, port int, timeout time.Duration) error {
	dialer := &net.Dialer{Timeout: timeout}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}
