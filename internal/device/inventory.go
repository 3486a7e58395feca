// Package device provides the device model and inventory loading for fleetcli.
package device

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadInventory loads an ordered device list from a file, selecting the
// parser by extension (.csv, .yml, .yaml). The returned order is the order
// devices appeared in the file and is the order reports render in.
func LoadInventory(path string) ([]Device, error) {
	if path == "" {
		return nil, fmt.Errorf("inventory path cannot be empty")
	}

	var (
		devices []Device
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		devices, err = loadCSV(path)
	case ".yml", ".yaml":
		devices, err = loadYAML(path)
	default:
		return nil, fmt.Errorf("unsupported inventory file format: %s", filepath.Ext(path))
	}

	if err != nil {
		return nil, err
	}

	for i := range devices {
		devices[i].Name = strings.TrimSpace(devices[i].Name)
		devices[i].Host = strings.TrimSpace(devices[i].Host)
		if err := Validate(devices[i]); err != nil {
			return nil, fmt.Errorf("inventory entry %d: %w", i+1, err)
		}
		if devices[i].Host == "" {
			devices[i].Host = devices[i].Name
		}
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices found in inventory %q", path)
	}

	if err := CheckDuplicates(devices); err != nil {
		return nil, err
	}

	return devices, nil
}

// loadCSV parses the original flat inventory format: a header row containing
// at least "name" and optionally "host", one device per following row.
func loadCSV(path string) ([]Device, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse inventory file: %w", err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("inventory file %q is empty", path)
	}

	header := records[0]
	nameCol, hostCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name":
			nameCol = i
		case "host":
			hostCol = i
		}
	}
	if nameCol == -1 {
		return nil, fmt.Errorf("inventory file %q missing required 'name' column", path)
	}

	devices := make([]Device, 0, len(records)-1)
	for _, row := range records[1:] {
		d := Device{Name: row[nameCol]}
		if hostCol >= 0 && hostCol < len(row) {
			d.Host = row[hostCol]
		}
		devices = append(devices, d)
	}

	return devices, nil
}

func loadYAML(path string) ([]Device, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file: %w", err)
	}

	var devices []Device
	if err := yaml.Unmarshal(content, &devices); err != nil {
		return nil, fmt.Errorf("failed to parse inventory file: %w", err)
	}

	return devices, nil
}
