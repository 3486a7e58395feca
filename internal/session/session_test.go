package session

import (
	"strings"
	"testing"

	"fleetcli/internal/errors"
)

func TestExtractOutput(t *testing.T) {
	t.Run("output element used verbatim", func(t *testing.T) {
		reply := `<rpc-reply><output>
Hostname: edge-nyc-01
Model: mx480
</output></rpc-reply>`
		got := extractOutput(reply)
		want := "Hostname: edge-nyc-01\nModel: mx480"
		if got != want {
			t.Errorf("extractOutput = %q, want %q", got, want)
		}
	})

	t.Run("reply without output element is stripped of tags", func(t *testing.T) {
		reply := `<rpc-reply><ok/></rpc-reply>`
		if got := extractOutput(reply); got != "" {
			t.Errorf("extractOutput = %q, want empty", got)
		}
	})

	t.Run("escaped entities are decoded", func(t *testing.T) {
		reply := `<rpc-reply><output>value &lt;unset&gt; &amp; pending</output></rpc-reply>`
		want := "value <unset> & pending"
		if got := extractOutput(reply); got != want {
			t.Errorf("extractOutput = %q, want %q", got, want)
		}
	})
}

func TestFindRPCError(t *testing.T) {
	t.Run("no rpc-error", func(t *testing.T) {
		if got := findRPCError(`<rpc-reply><ok/></rpc-reply>`); got != "" {
			t.Errorf("findRPCError = %q, want empty", got)
		}
	})

	t.Run("error message extracted", func(t *testing.T) {
		reply := `<rpc-reply><rpc-error><error-message>
syntax error near 'bogus'
</error-message></rpc-error></rpc-reply>`
		got := findRPCError(reply)
		if got != "syntax error near 'bogus'" {
			t.Errorf("findRPCError = %q", got)
		}
	})

	t.Run("rpc-error without message still reported", func(t *testing.T) {
		if got := findRPCError(`<rpc-reply><rpc-error></rpc-error></rpc-reply>`); got == "" {
			t.Error("findRPCError = empty, want placeholder message")
		}
	})
}

func TestEscapeXMLRoundTrip(t *testing.T) {
	raw := `set system login message "a < b & c > d"`
	escaped := escapeXML(raw)
	if strings.ContainsAny(escaped, "<>\"") {
		t.Errorf("escapeXML left raw markup characters: %q", escaped)
	}
	if got := unescapeXML(escaped); got != raw {
		t.Errorf("round trip = %q, want %q", got, raw)
	}
}

func TestWrapRPC(t *testing.T) {
	msg := wrapRPC(`<commit-configuration/>`)
	if !strings.HasSuffix(msg, frameEnd) {
		t.Errorf("wrapRPC missing frame delimiter: %q", msg)
	}
	if !strings.Contains(msg, `<rpc xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">`) {
		t.Errorf("wrapRPC missing rpc envelope: %q", msg)
	}
}

func TestBuildCommitScript(t *testing.T) {
	script := buildCommitScript("set system ntp server 10.0.0.1")
	lines := strings.Split(script, "\n")

	want := []string{"configure exclusive", "set system ntp server 10.0.0.1", "commit and-quit", "exit", ""}
	if len(lines) != len(want) {
		t.Fatalf("script lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestCheckCommitOutput(t *testing.T) {
	t.Run("commit complete succeeds", func(t *testing.T) {
		output := "[edit]\ncommit complete\nExiting configuration mode"
		if err := checkCommitOutput(output); err != nil {
			t.Errorf("checkCommitOutput = %v, want nil", err)
		}
	})

	t.Run("error line fails with the device message", func(t *testing.T) {
		output := "[edit]\nerror: statement not permitted\n"
		err := checkCommitOutput(output)
		if err == nil {
			t.Fatal("expected commit failure")
		}
		if !strings.Contains(err.Error(), "statement not permitted") {
			t.Errorf("error = %v, want device message", err)
		}

		ce, ok := err.(*errors.ClassifiedError)
		if !ok {
			t.Fatalf("error type = %T, want *errors.ClassifiedError", err)
		}
		if ce.Type != errors.CommitReason {
			t.Errorf("error reason = %s, want %s", ce.Type, errors.CommitReason)
		}
	})

	t.Run("silence is a failure", func(t *testing.T) {
		if err := checkCommitOutput("[edit]\n"); err == nil {
			t.Error("expected failure when no confirmation seen")
		}
	})
}
