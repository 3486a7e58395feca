package command

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		base     string
		filter   string
		mutating bool
	}{
		{
			name:     "show command is read-only",
			raw:      "show version",
			base:     "show version",
			mutating: false,
		},
		{
			name:     "set command mutates",
			raw:      "set system ntp server 10.0.0.1",
			base:     "set system ntp server 10.0.0.1",
			mutating: true,
		},
		{
			name:     "delete command mutates",
			raw:      "delete interfaces ge-0/0/0 disable",
			base:     "delete interfaces ge-0/0/0 disable",
			mutating: true,
		},
		{
			name:     "filter split on first delimiter only",
			raw:      "show interfaces terse | grep up | grep eth",
			base:     "show interfaces terse",
			filter:   "up | grep eth",
			mutating: false,
		},
		{
			name:     "show prefix check ignores case and whitespace",
			raw:      "  SHOW route  ",
			base:     "SHOW route",
			mutating: false,
		},
		{
			name:     "showx prefix still counts as show",
			raw:      "showroute",
			base:     "showroute",
			mutating: false,
		},
		{
			name:     "empty command classifies as mutating with empty base",
			raw:      "",
			base:     "",
			mutating: true,
		},
		{
			name:     "filter on mutating command",
			raw:      "request system reboot | grep confirm",
			base:     "request system reboot",
			filter:   "confirm",
			mutating: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.raw)
			if got.Base != tt.base {
				t.Errorf("Base = %q, want %q", got.Base, tt.base)
			}
			if got.Filter != tt.filter {
				t.Errorf("Filter = %q, want %q", got.Filter, tt.filter)
			}
			if got.Mutating != tt.mutating {
				t.Errorf("Mutating = %v, want %v", got.Mutating, tt.mutating)
			}
		})
	}
}

func TestApplyFilter(t *testing.T) {
	output := strings.Join([]string{
		"ge-0/0/0    up    up",
		"ge-0/0/1    down  down",
		"ge-0/0/2    up    up",
	}, "\n")

	t.Run("keeps matching lines in order", func(t *testing.T) {
		got := ApplyFilter(output, "up")
		want := "ge-0/0/0    up    up\nge-0/0/2    up    up"
		if got != want {
			t.Errorf("ApplyFilter = %q, want %q", got, want)
		}
	})

	t.Run("match is case-insensitive", func(t *testing.T) {
		got := ApplyFilter(output, "DOWN")
		want := "ge-0/0/1    down  down"
		if got != want {
			t.Errorf("ApplyFilter = %q, want %q", got, want)
		}
	})

	t.Run("empty filter returns output unchanged", func(t *testing.T) {
		if got := ApplyFilter(output, ""); got != output {
			t.Errorf("ApplyFilter = %q, want original output", got)
		}
	})

	t.Run("no matches yields empty string", func(t *testing.T) {
		if got := ApplyFilter(output, "absent"); got != "" {
			t.Errorf("ApplyFilter = %q, want empty", got)
		}
	})

	t.Run("lines after an oversize line are kept", func(t *testing.T) {
		long := strings.Repeat("x", 2<<20)
		out := strings.Join([]string{"up:eth0", long, "up:eth2"}, "\n")

		got := ApplyFilter(out, "up")
		want := "up:eth0\nup:eth2"
		if got != want {
			t.Errorf("ApplyFilter dropped lines after a %d-byte line: got %q, want %q",
				len(long), got, want)
		}
	})

	t.Run("oversize matching line is kept whole", func(t *testing.T) {
		long := "up:" + strings.Repeat("x", 2<<20)
		got := ApplyFilter("down:eth0\n"+long, "up")
		if got != long {
			t.Errorf("ApplyFilter truncated a long matching line: got %d bytes, want %d",
				len(got), len(long))
		}
	})
}
