// Package errors provides error classification for fleetcli dispatch failures.
package errors

import (
	"fmt"
	"net"
	"strings"
)

// ReasonType classifies why a device operation failed
type ReasonType int

const (
	// SetupReason represents configuration, validation, or inventory errors
	SetupReason ReasonType = iota

	// UnreachableReason represents a port that could not be reached at all
	UnreachableReason

	// AuthenticationReason represents credential or host-key failures
	AuthenticationReason

	// ProtocolReason represents transport or session-protocol failures after reachability
	ProtocolReason

	// CommitReason represents a failed configuration load or commit
	CommitReason

	// TimeoutReason represents deadline or timeout failures
	TimeoutReason

	// UnknownReason represents unclassified errors
	UnknownReason
)

// String returns a string representation of the reason type
func (rt ReasonType) String() string {
	switch rt {
	case SetupReason:
		return "setup"
	case UnreachableReason:
		return "port unreachable"
	case AuthenticationReason:
		return "authentication"
	case ProtocolReason:
		return "protocol"
	case CommitReason:
		return "commit"
	case TimeoutReason:
		return "timeout"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with its failure classification
type ClassifiedError struct {
	Type     ReasonType
	Original error
	Message  string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	if ce.Original != nil {
		return ce.Original.Error()
	}
	return "unknown error"
}

// Unwrap returns the original error for error unwrapping
func (ce *ClassifiedError) Unwrap() error {
	return ce.Original
}

// Classify analyzes an error and returns its classification
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	if ce, ok := err.(*ClassifiedError); ok {
		return ce
	}

	errStr := strings.ToLower(err.Error())

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return &ClassifiedError{Type: TimeoutReason, Original: err}
	}

	switch {
	case isTimeoutError(errStr):
		return &ClassifiedError{Type: TimeoutReason, Original: err}
	case isAuthenticationError(errStr):
		return &ClassifiedError{Type: AuthenticationReason, Original: err}
	case isUnreachableError(errStr):
		return &ClassifiedError{Type: UnreachableReason, Original: err}
	case isCommitError(errStr):
		return &ClassifiedError{Type: CommitReason, Original: err}
	case isProtocolError(errStr):
		return &ClassifiedError{Type: ProtocolReason, Original: err}
	case isSetupError(errStr):
		return &ClassifiedError{Type: SetupReason, Original: err}
	default:
		return &ClassifiedError{Type: UnknownReason, Original: err}
	}
}

func isSetupError(errStr string) bool {
	setupKeywords := []string{
		"configuration file",
		"invalid",
		"file not found",
		"parse error",
		"validation failed",
		"missing required",
		"malformed",
		"duplicate device",
	}

	for _, keyword := range setupKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

func isAuthenticationError(errStr string) bool {
	authKeywords := []string{
		"authentication failed",
		"auth fail",
		"permission denied (publickey)",
		"permission denied (password",
		"no supported authentication methods",
		"unable to authenticate",
		"hostkey verification failed",
		"host key verification failed",
		"access denied",
	}

	for _, keyword := range authKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

func isTimeoutError(errStr string) bool {
	timeoutKeywords := []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"i/o timeout",
	}

	for _, keyword := range timeoutKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

func isUnreachableError(errStr string) bool {
	unreachableKeywords := []string{
		"port unreachable",
		"connection refused",
		"network unreachable",
		"no route to host",
		"host unreachable",
		"no such host",
	}

	for _, keyword := range unreachableKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

func isProtocolError(errStr string) bool {
	protocolKeywords := []string{
		"handshake failed",
		"connection reset",
		"connection lost",
		"connection closed",
		"broken pipe",
		"protocol error",
		"unexpected eof",
		"rpc-error",
		"malformed hello",
		"subsystem request failed",
	}

	for _, keyword := range protocolKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

func isCommitError(errStr string) bool {
	commitKeywords := []string{
		"commit failed",
		"commit-configuration failed",
		"load-configuration failed",
		"configuration check-out failed",
		"configuration database locked",
	}

	for _, keyword := range commitKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

// NewSetupError creates a new setup error
func NewSetupError(message string, original error) *ClassifiedError {
	return &ClassifiedError{Type: SetupReason, Original: original, Message: message}
}

// NewUnreachableError creates a new port-unreachable error
func NewUnreachableError(message string, original error) *ClassifiedError {
	return &ClassifiedError{Type: UnreachableReason, Original: original, Message: message}
}

// NewCommitError creates a new commit error
func NewCommitError(message string, original error) *ClassifiedError {
	return &ClassifiedError{Type: CommitReason, Original: original, Message: message}
}

// Collector collects and categorizes errors across one dispatch run
type Collector struct {
	errors map[ReasonType][]error
	count  int
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		errors: make(map[ReasonType][]error),
	}
}

// Add adds an error to the collector
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}

	classified := Classify(err)
	c.errors[classified.Type] = append(c.errors[classified.Type], err)
	c.count++
}

// Count returns the total number of errors
func (c *Collector) Count() int {
	return c.count
}

// CountByType returns the number of errors of a specific type
func (c *Collector) CountByType(reason ReasonType) int {
	return len(c.errors[reason])
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	return c.count > 0
}

// Summary returns a summary of all collected errors
func (c *Collector) Summary() string {
	if c.count == 0 {
		return "no errors"
	}

	var parts []string
	for reason := SetupReason; reason <= UnknownReason; reason++ {
		if n := len(c.errors[reason]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, reason.String()))
		}
	}

	return fmt.Sprintf("total: %d errors (%s)", c.count, strings.Join(parts, ", "))
}
