package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// Entry is the per-image line of a report.
type Entry struct {
	Number      int    `json:"number" yaml:"number"`
	Reliability int    `json:"reliability" yaml:"reliability"`
	LPNum       string `json:"lpNum" yaml:"lpNum"`
}

// Report is the aggregate outcome of a batch run.
type Report struct {
	Pass    int     `json:"pass" yaml:"pass"`
	Fail    int     `json:"fail" yaml:"fail"`
	Results []Entry `json:"results" yaml:"results"`
}

// BuildReport summarises results in index order. Images that could not be
// decoded are left out, so Pass+Fail equals the number of decoded images.
func BuildReport(results []pipeline.Result) *Report {
	sorted := append([]pipeline.Result(nil), results...)
	pipeline.SortByIndex(sorted)

	rep := &Report{Results: make([]Entry, 0, len(sorted))}
	for _, r := range sorted {
		if !r.Decoded() {
			continue
		}
		rep.Add(r)
	}
	return rep
}

// Add appends one decoded result and updates the counters.
func (r *Report) Add(res pipeline.Result) {
	if res.Success {
		r.Pass++
	} else {
		r.Fail++
	}
	r.Results = append(r.Results, Entry{
		Number:      res.Number(),
		Reliability: int(res.Reliability),
		LPNum:       res.PlateText,
	})
}

// Total is the number of entries.
func (r *Report) Total() int { return r.Pass + r.Fail }

// Format renders the report in one of the supported formats.
func (r *Report) Format(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatCSV:
		return r.formatCSV()
	case FormatText:
		var buf bytes.Buffer
		r.WriteText(&buf)
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

func (r *Report) formatCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"number", "reliability", "lpNum"}); err != nil {
		return nil, err
	}
	for _, e := range r.Results {
		row := []string{strconv.Itoa(e.Number), strconv.Itoa(e.Reliability), e.LPNum}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteText prints a human summary followed by one line per image.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Processed: %d  Pass: %d  Fail: %d\n", r.Total(), r.Pass, r.Fail)
	for _, e := range r.Results {
		plate := e.LPNum
		if plate == "" {
			plate = "-"
		}
		fmt.Fprintf(w, "%4d  %-8s  %s\n", e.Number, reliabilityLabel(e.Reliability), plate)
	}
}

func reliabilityLabel(r int) string {
	switch r {
	case 1:
		return "full"
	case 0:
		return "partial"
	default:
		return "invalid"
	}
}

// Save writes the report to path, creating parent directories.
func (r *Report) Save(path, format string) error {
	data, err := r.Format(format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
