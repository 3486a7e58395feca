package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"fleetcli/internal/errors"
	"fleetcli/internal/logging"
)

// frameEnd terminates every NETCONF 1.0 message
const frameEnd = "]]>]]>"

const clientHello = `<?xml version="1.0" encoding="UTF-8"?>
<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <capabilities>
    <capability>urn:ietf:params:netconf:base:1.0</capability>
  </capabilities>
</hello>
` + frameEnd

// netconfSession drives the NETCONF subsystem of one SSH connection.
// Queries use the vendor <command> RPC with text output; configuration
// changes load "set" statements and commit them as one transaction.
type netconfSession struct {
	conn   *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *logging.Logger
}

// newNetconfSession opens the netconf subsystem and exchanges hello messages
func newNetconfSession(ctx context.Context, conn *ssh.Client, logger *logging.Logger) (*netconfSession, error) {
	sess, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := sess.RequestSubsystem("netconf"); err != nil {
		sess.Close()
		return nil, fmt.Errorf("netconf subsystem request failed: %w", err)
	}

	nc := &netconfSession{
		conn:   conn,
		sess:   sess,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		logger: logger,
	}

	if err := nc.exchangeHello(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	return nc, nil
}

func (nc *netconfSession) exchangeHello(ctx context.Context) error {
	hello, err := nc.exchange(ctx, clientHello)
	if err != nil {
		return fmt.Errorf("hello exchange failed: %w", err)
	}
	if !strings.Contains(hello, "<hello") {
		return fmt.Errorf("malformed hello from server")
	}
	return nil
}

// RunQuery executes a read-only command via the <command> RPC
func (nc *netconfSession) RunQuery(ctx context.Context, command string) (string, error) {
	start := time.Now()

	reply, err := nc.rpc(ctx, fmt.Sprintf(`<command format="text">%s</command>`, escapeXML(command)))
	if err != nil {
		return "", err
	}

	if nc.logger != nil {
		nc.logger.LogQuery(time.Since(start))
	}

	return extractOutput(reply), nil
}

// CommitConfig loads "set" statements and commits them. Load and commit are
// separate RPCs but the device applies the commit atomically; a failure in
// either step fails the whole call. rpc already surfaces rpc-error replies
// as errors, so each step needs only one check.
func (nc *netconfSession) CommitConfig(ctx context.Context, command string) error {
	start := time.Now()

	loadRPC := fmt.Sprintf(`<load-configuration action="set" format="text"><configuration-set>%s</configuration-set></load-configuration>`,
		escapeXML(command))
	if _, err := nc.rpc(ctx, loadRPC); err != nil {
		return errors.NewCommitError(fmt.Sprintf("load-configuration failed: %v", err), err)
	}

	if _, err := nc.rpc(ctx, `<commit-configuration/>`); err != nil {
		return errors.NewCommitError(fmt.Sprintf("commit-configuration failed: %v", err), err)
	}

	if nc.logger != nil {
		nc.logger.LogCommit(time.Since(start))
	}

	return nil
}

// Close sends close-session best-effort and tears down the connection
func (nc *netconfSession) Close() error {
	if nc.stdin != nil {
		fmt.Fprint(nc.stdin, wrapRPC(`<close-session/>`))
		nc.stdin.Close()
		nc.stdin = nil
	}
	if nc.sess != nil {
		nc.sess.Close()
		nc.sess = nil
	}
	if nc.conn != nil {
		err := nc.conn.Close()
		nc.conn = nil
		return err
	}
	return nil
}

// rpc sends one framed RPC and returns the raw reply, failing on rpc-error
func (nc *netconfSession) rpc(ctx context.Context, body string) (string, error) {
	reply, err := nc.exchange(ctx, wrapRPC(body))
	if err != nil {
		return "", err
	}
	if rpcErr := findRPCError(reply); rpcErr != "" {
		return reply, fmt.Errorf("rpc-error: %s", rpcErr)
	}
	return reply, nil
}

// exchange writes one framed message and reads one framed reply. The read
// blocks inside a goroutine so a canceled context abandons the session
// rather than hanging the unit of work.
func (nc *netconfSession) exchange(ctx context.Context, msg string) (string, error) {
	if nc.stdin == nil {
		return "", fmt.Errorf("session closed")
	}

	if _, err := io.WriteString(nc.stdin, msg); err != nil {
		return "", fmt.Errorf("failed to write rpc: %w", err)
	}

	type readResult struct {
		frame string
		err   error
	}
	done := make(chan readResult, 1)
	go func() {
		frame, err := readFrame(nc.stdout)
		done <- readResult{frame, err}
	}()

	select {
	case r := <-done:
		return r.frame, r.err
	case <-ctx.Done():
		// Abandon the session; Close tears down the transport
		return "", fmt.Errorf("rpc timeout: %w", ctx.Err())
	}
}

// readFrame reads up to and excluding the ]]>]]> delimiter
func readFrame(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("failed to read rpc reply: %w", err)
		}
		sb.WriteByte(b)
		if strings.HasSuffix(sb.String(), frameEnd) {
			frame := sb.String()
			return frame[:len(frame)-len(frameEnd)], nil
		}
	}
}

func wrapRPC(body string) string {
	return fmt.Sprintf(`<rpc xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">%s</rpc>%s%s`, body, "\n", frameEnd)
}

var (
	outputRE   = regexp.MustCompile(`(?s)<output>(.*)</output>`)
	rpcErrorRE = regexp.MustCompile(`(?s)<error-message>\s*(.*?)\s*</error-message>`)
	tagRE      = regexp.MustCompile(`(?s)<[^>]+>`)
)

// extractOutput pulls the text payload out of an rpc-reply. Replies with an
// <output> element use it verbatim; otherwise the reply is returned with the
// XML envelope stripped.
func extractOutput(reply string) string {
	if m := outputRE.FindStringSubmatch(reply); m != nil {
		return unescapeXML(strings.Trim(m[1], "\n"))
	}
	return strings.TrimSpace(unescapeXML(tagRE.ReplaceAllString(reply, "")))
}

// findRPCError returns the error message of the first rpc-error, or ""
func findRPCError(reply string) string {
	if !strings.Contains(reply, "<rpc-error>") {
		return ""
	}
	if m := rpcErrorRE.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return "unspecified rpc-error"
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func escapeXML(s string) string   { return xmlEscaper.Replace(s) }
func unescapeXML(s string) string { return xmlUnescaper.Replace(s) }
