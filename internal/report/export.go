package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Record is the structured export form of one outcome. Every format carries
// exactly these three fields.
type Record struct {
	Device string `json:"device"`
	Status string `json:"status"`
	Output string `json:"output"`
}

// Records returns all outcomes as export records in input device order
func (r *Run) Records() []Record {
	outcomes := r.Outcomes()
	records := make([]Record, len(outcomes))
	for i, o := range outcomes {
		records[i] = Record{
			Device: o.Device.Name,
			Status: string(o.Status),
			Output: o.Output,
		}
	}
	return records
}

// Export writes the run to the destination path; the extension selects the
// format (.json, .txt, .csv). An export failure never invalidates the
// in-memory run already rendered to the operator.
func (r *Run) Export(path string) error {
	var write func(io.Writer) error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		write = r.exportJSON
	case ".txt":
		write = r.exportText
	case ".csv":
		write = r.exportCSV
	default:
		return fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := write(file); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	return nil
}

// exportJSON writes the structured record list
func (r *Run) exportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Records())
}

// exportText writes line-delimited device blocks: header, output, separator
func (r *Run) exportText(w io.Writer) error {
	for _, rec := range r.Records() {
		if _, err := fmt.Fprintf(w, "=== %s (%s) ===\n", rec.Device, rec.Status); err != nil {
			return err
		}
		output := rec.Output
		if output != "" && !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		if _, err := io.WriteString(w, output); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, strings.Repeat("-", 40)); err != nil {
			return err
		}
	}
	return nil
}

// exportCSV writes flat tabular rows with a header
func (r *Run) exportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"device", "status", "output"}); err != nil {
		return err
	}
	for _, rec := range r.Records() {
		if err := cw.Write([]string{rec.Device, rec.Status, rec.Output}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
