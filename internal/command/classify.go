// Package command classifies operator commands and applies client-side output filters.
package command

import (
	"strings"
)

// FilterDelimiter separates the base command from an optional output filter.
// Everything after the first occurrence is treated as a case-insensitive
// substring filter applied to the command output line by line.
const FilterDelimiter = " | grep "

// Command is the decomposed form of one raw operator command line.
type Command struct {
	Base     string // Command sent to the device
	Filter   string // Optional output filter substring ("" when absent)
	Mutating bool   // True when the command requires a config commit
}

// Classify decomposes a raw command line into its base command, optional
// filter, and mutation classification. Classification is independent of
// device identity, so callers classify once per dispatch.
//
// An empty base command classifies as mutating with Base == ""; callers must
// reject it before dispatch rather than forwarding it to devices.
func Classify(raw string) Command {
	base := raw
	filter := ""

	if idx := strings.Index(raw, FilterDelimiter); idx >= 0 {
		base = raw[:idx]
		filter = raw[idx+len(FilterDelimiter):]
	}

	trimmed := strings.ToLower(strings.TrimSpace(base))

	return Command{
		Base:     strings.TrimSpace(base),
		Filter:   strings.TrimSpace(filter),
		Mutating: !strings.HasPrefix(trimmed, "show"),
	}
}

// ApplyFilter drops output lines that do not contain the filter substring,
// case-insensitively, preserving relative order. An empty filter returns the
// output unchanged. Lines have no length limit; device outputs can carry
// arbitrarily long lines and none may be silently lost.
func ApplyFilter(output, filter string) string {
	if filter == "" {
		return output
	}

	needle := strings.ToLower(filter)
	var matched []string

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(strings.ToLower(line), needle) {
			matched = append(matched, line)
		}
	}

	return strings.Join(matched, "\n")
}
