// Package session implements administrative device sessions over SSH.
//
// Two transports are supported: NETCONF over the SSH "netconf" subsystem
// (customarily port 830) and the device CLI over plain SSH exec (port 22).
// The Opener selects the transport by port so the connection strategy can
// treat both uniformly.
package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"fleetcli/internal/logging"
)

// NetconfPort is the IANA-assigned port for NETCONF over SSH
const NetconfPort = 830

// DefaultConnectTimeout bounds the TCP dial plus SSH handshake per attempt
const DefaultConnectTimeout = 30 * time.Second

// Credentials holds the operator login shared read-only across all
// concurrent device operations. Never persisted, never logged.
type Credentials struct {
	Username string
	Password string
}

// Session is one live administrative connection to a device
type Session interface {
	// RunQuery executes a read-only command and returns its text output
	RunQuery(ctx context.Context, command string) (string, error)

	// CommitConfig loads the given configuration statement and commits it
	// as one atomic transaction
	CommitConfig(ctx context.Context, command string) error

	// Close terminates the session and releases the underlying connection
	Close() error
}

// Opener opens a session to one host on one port
type Opener interface {
	Open(ctx context.Context, host string, port int, creds Credentials, logger *logging.Logger) (Session, error)
}

// SSHOpener implements Opener using golang.org/x/crypto/ssh
type SSHOpener struct {
	ConnectTimeout time.Duration
}

// NewOpener creates an opener with the default connect timeout
func NewOpener() *SSHOpener {
	return &SSHOpener{ConnectTimeout: DefaultConnectTimeout}
}

// Open dials the host, performs the SSH handshake, and wraps the connection
// in the transport matching the port. The passed logger is already scoped to
// the device and port by the caller.
func (o *SSHOpener) Open(ctx context.Context, host string, port int, creds Credentials, logger *logging.Logger) (Session, error) {
	config, err := buildClientConfig(creds, logger, o.connectTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := &net.Dialer{Timeout: o.connectTimeout()}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, address, config)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("SSH handshake failed for %s: %w", address, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	if port == NetconfPort {
		sess, err := newNetconfSession(ctx, client, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return sess, nil
	}

	return &cliSession{conn: client, logger: logger}, nil
}

func (o *SSHOpener) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// buildClientConfig creates an SSH client configuration. Password auth comes
// first since device credentials are prompted per run; an SSH agent is used
// as a fallback when running under one.
func buildClientConfig(creds Credentials, logger *logging.Logger, timeout time.Duration) (*ssh.ClientConfig, error) {
	authMethods := []ssh.AuthMethod{
		ssh.Password(creds.Password),
		ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range questions {
				answers[i] = creds.Password
			}
			return answers, nil
		}),
	}

	if agentAuth := getAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	return &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            authMethods,
		HostKeyCallback: getHostKeyCallback(logger),
		Timeout:         timeout,
	}, nil
}

// getAgentAuth returns SSH agent authentication if available
func getAgentAuth() ssh.AuthMethod {
	if agentConn, err := net.Dial("unix", os.Getenv("SSH_AUTH_SOCK")); err == nil {
		return ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers)
	}
	return nil
}

// getHostKeyCallback returns a host key callback that tries known_hosts
// first, then falls back to a warning-based insecure callback so the tool
// still works against fleets whose keys were never collected
func getHostKeyCallback(logger *logging.Logger) ssh.HostKeyCallback {
	if homeDir, err := os.UserHomeDir(); err == nil {
		knownHostsFile := homeDir + "/.ssh/known_hosts"
		if _, err := os.Stat(knownHostsFile); err == nil {
			if hostKeyCallback, err := knownhosts.New(knownHostsFile); err == nil {
				return hostKeyCallback
			}
		}
	}

	if hostKeyCallback, err := knownhosts.New("/etc/ssh/ssh_known_hosts"); err == nil {
		return hostKeyCallback
	}

	return ssh.HostKeyCallback(func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if logger != nil {
			logger.LogHostKeyWarning(hostname, "Host key verification disabled - not recommended for production")
		}
		return nil
	})
}
