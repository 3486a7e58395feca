package device

import (
	"fmt"
	"strings"
)

// Device represents one managed network device from the inventory.
// Identity is Name; Host is the address used to open sessions and defaults
// to Name when the inventory omits it. Devices are immutable for the run.
type Device struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
}

// Validate checks a single device record for correctness
func Validate(d Device) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("device name cannot be empty")
	}
	return nil
}

// CheckDuplicates verifies that device names are unique within a dispatch set.
// Duplicate names are a configuration error surfaced before dispatch begins.
func CheckDuplicates(devices []Device) error {
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		if seen[d.Name] {
			return fmt.Errorf("duplicate device name %q in inventory", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// FilterBySite returns devices whose name contains the given substring,
// case-insensitively, preserving inventory order. An empty filter returns
// the input unchanged.
func FilterBySite(devices []Device, site string) []Device {
	if site == "" {
		return devices
	}

	needle := strings.ToLower(site)
	var filtered []Device
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			filtered = append(filtered, d)
		}
	}

	return filtered
}
