package device

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeInventory(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write inventory file: %v", err)
	}
	return path
}

func TestLoadInventoryCSV(t *testing.T) {
	t.Run("loads devices in file order", func(t *testing.T) {
		path := writeInventory(t, "devices.csv",
			"name,host\nedge-nyc-01,10.0.0.1\ncore-sfo-01,10.0.1.1\nedge-nyc-02,10.0.0.2\n")

		devices, err := LoadInventory(path)
		if err != nil {
			t.Fatalf("LoadInventory failed: %v", err)
		}

		wantNames := []string{"edge-nyc-01", "core-sfo-01", "edge-nyc-02"}
		if len(devices) != len(wantNames) {
			t.Fatalf("got %d devices, want %d", len(devices), len(wantNames))
		}
		for i, want := range wantNames {
			if devices[i].Name != want {
				t.Errorf("device %d name = %q, want %q", i, devices[i].Name, want)
			}
		}
		if devices[0].Host != "10.0.0.1" {
			t.Errorf("device 0 host = %q, want 10.0.0.1", devices[0].Host)
		}
	})

	t.Run("host defaults to name when column absent", func(t *testing.T) {
		path := writeInventory(t, "devices.csv", "name\nedge-nyc-01\n")

		devices, err := LoadInventory(path)
		if err != nil {
			t.Fatalf("LoadInventory failed: %v", err)
		}
		if devices[0].Host != "edge-nyc-01" {
			t.Errorf("host = %q, want name fallback", devices[0].Host)
		}
	})

	t.Run("missing name column is an error", func(t *testing.T) {
		path := writeInventory(t, "devices.csv", "host\n10.0.0.1\n")
		if _, err := LoadInventory(path); err == nil {
			t.Fatal("expected error for missing name column")
		}
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		path := writeInventory(t, "devices.csv",
			"name,host\nedge-nyc-01,10.0.0.1\nedge-nyc-01,10.0.0.2\n")
		_, err := LoadInventory(path)
		if err == nil {
			t.Fatal("expected duplicate error")
		}
		if !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("error = %v, want duplicate mention", err)
		}
	})

	t.Run("empty inventory is an error", func(t *testing.T) {
		path := writeInventory(t, "devices.csv", "name,host\n")
		if _, err := LoadInventory(path); err == nil {
			t.Fatal("expected error for empty inventory")
		}
	})
}

func TestLoadInventoryYAML(t *testing.T) {
	path := writeInventory(t, "devices.yaml",
		"- name: edge-nyc-01\n  host: 10.0.0.1\n- name: core-sfo-01\n")

	devices, err := LoadInventory(path)
	if err != nil {
		t.Fatalf("LoadInventory failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[0].Host != "10.0.0.1" {
		t.Errorf("device 0 host = %q, want 10.0.0.1", devices[0].Host)
	}
	if devices[1].Host != "core-sfo-01" {
		t.Errorf("device 1 host = %q, want name fallback", devices[1].Host)
	}
}

func TestLoadInventoryUnsupportedFormat(t *testing.T) {
	path := writeInventory(t, "devices.txt", "edge-nyc-01\n")
	if _, err := LoadInventory(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestFilterBySite(t *testing.T) {
	devices := []Device{
		{Name: "edge-nyc-01", Host: "10.0.0.1"},
		{Name: "core-sfo-01", Host: "10.0.1.1"},
		{Name: "edge-NYC-02", Host: "10.0.0.2"},
	}

	t.Run("matches substring case-insensitively, preserving order", func(t *testing.T) {
		got := FilterBySite(devices, "nyc")
		if len(got) != 2 {
			t.Fatalf("got %d devices, want 2", len(got))
		}
		if got[0].Name != "edge-nyc-01" || got[1].Name != "edge-NYC-02" {
			t.Errorf("unexpected filter result: %v", got)
		}
	})

	t.Run("empty filter keeps all devices", func(t *testing.T) {
		if got := FilterBySite(devices, ""); len(got) != len(devices) {
			t.Errorf("got %d devices, want %d", len(got), len(devices))
		}
	})

	t.Run("no matches yields empty set", func(t *testing.T) {
		if got := FilterBySite(devices, "lon"); len(got) != 0 {
			t.Errorf("got %d devices, want 0", len(got))
		}
	})
}
