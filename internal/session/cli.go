package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"fleetcli/internal/errors"
	"fleetcli/internal/logging"
)

// cliSession runs commands through the device CLI over plain SSH exec.
// This is the fallback transport when the NETCONF port is closed.
type cliSession struct {
	conn   *ssh.Client
	logger *logging.Logger
}

// RunQuery executes a read-only command and captures its output. Paging is
// disabled so long outputs come back in one piece.
func (c *cliSession) RunQuery(ctx context.Context, command string) (string, error) {
	start := time.Now()

	output, err := c.run(ctx, command+" | no-more")
	if err != nil {
		return "", err
	}

	if c.logger != nil {
		c.logger.LogQuery(time.Since(start))
	}

	return output, nil
}

// CommitConfig drives an exclusive configuration session through the CLI:
// enter configure exclusive, load the statements, commit and-quit. The
// device treats the commit as one transaction.
func (c *cliSession) CommitConfig(ctx context.Context, command string) error {
	start := time.Now()

	script := buildCommitScript(command)
	output, err := c.runShell(ctx, script)
	if err != nil {
		return errors.NewCommitError(fmt.Sprintf("commit failed: %v", err), err)
	}

	if err := checkCommitOutput(output); err != nil {
		return err
	}

	if c.logger != nil {
		c.logger.LogCommit(time.Since(start))
	}

	return nil
}

// Close terminates the underlying SSH connection
func (c *cliSession) Close() error {
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// run executes a single command in its own SSH session, bounded by ctx
func (c *cliSession) run(ctx context.Context, command string) (string, error) {
	if c.conn == nil {
		return "", fmt.Errorf("session closed")
	}

	sess, err := c.conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(command)
	}()

	select {
	case err := <-done:
		if err != nil {
			if stderr.Len() > 0 {
				return "", fmt.Errorf("command failed: %s", strings.TrimSpace(stderr.String()))
			}
			return "", fmt.Errorf("command failed: %w", err)
		}
		return stdout.String(), nil

	case <-ctx.Done():
		sess.Signal(ssh.SIGTERM)
		return "", fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

// runShell feeds a line script to an interactive CLI shell and collects the
// combined output until the shell exits
func (c *cliSession) runShell(ctx context.Context, script string) (string, error) {
	if c.conn == nil {
		return "", fmt.Errorf("session closed")
	}

	sess, err := c.conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer sess.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 115200,
		ssh.TTY_OP_OSPEED: 115200,
	}
	if err := sess.RequestPty("vt100", 80, 200, modes); err != nil {
		return "", fmt.Errorf("pty request failed: %w", err)
	}

	var output bytes.Buffer
	sess.Stdout = &output
	sess.Stderr = &output
	sess.Stdin = strings.NewReader(script)

	done := make(chan error, 1)
	go func() {
		done <- sess.Shell()
	}()

	select {
	case err := <-done:
		if err != nil {
			return output.String(), fmt.Errorf("shell start failed: %w", err)
		}
	case <-ctx.Done():
		return output.String(), fmt.Errorf("commit timeout: %w", ctx.Err())
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- sess.Wait()
	}()

	select {
	case <-waitDone:
		return output.String(), nil
	case <-ctx.Done():
		sess.Signal(ssh.SIGKILL)
		return output.String(), fmt.Errorf("commit timeout: %w", ctx.Err())
	}
}

// buildCommitScript assembles the CLI line sequence for one config change
func buildCommitScript(command string) string {
	lines := []string{
		"configure exclusive",
	}
	for _, stmt := range strings.Split(command, "\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			lines = append(lines, stmt)
		}
	}
	lines = append(lines, "commit and-quit", "exit", "")
	return strings.Join(lines, "\n")
}

// checkCommitOutput inspects shell output for commit success or failure
func checkCommitOutput(output string) error {
	lower := strings.ToLower(output)

	if strings.Contains(lower, "commit complete") {
		return nil
	}

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		lowerLine := strings.ToLower(trimmed)
		if strings.HasPrefix(lowerLine, "error:") || strings.Contains(lowerLine, "syntax error") {
			return errors.NewCommitError(fmt.Sprintf("commit failed: %s", trimmed), nil)
		}
	}

	return errors.NewCommitError("commit failed: no commit confirmation in device output", nil)
}
