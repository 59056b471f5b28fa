package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Report formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatText = "text"
)

// ErrOutputContainsInput rejects a cleaned output directory that is the input
// directory or one of its ancestors.
var ErrOutputContainsInput = errors.New("output directory must not contain the input directory when clean is enabled")

// Config holds the settings of one batch run. The output directory is always
// passed explicitly; nothing in the package keeps a process-wide path.
type Config struct {
	InputDir  string
	OutputDir string
	// Clean removes everything in OutputDir before the run.
	Clean bool
	// ReportPath overrides <OutputDir>/report.<ext>.
	ReportPath string
	Format     string

	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	Workers      int
	ShowProgress bool
	Quiet        bool
}

// DefaultConfig returns a JSON-reporting run writing to ./results.
func DefaultConfig() Config {
	return Config{
		OutputDir: "results",
		Clean:     true,
		Format:    FormatJSON,
	}
}

// Validate checks required fields and the report format.
func (c Config) Validate() error {
	if c.InputDir == "" {
		return errors.New("input directory is required")
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.Clean && containsPath(c.OutputDir, c.InputDir) {
		return fmt.Errorf("%w: %s contains %s", ErrOutputContainsInput, c.OutputDir, c.InputDir)
	}
	if !IsFormat(c.Format) {
		return fmt.Errorf("unsupported report format %q (json, yaml, csv, text)", c.Format)
	}
	return nil
}

// IsFormat reports whether f is a supported report format.
func IsFormat(f string) bool {
	return slices.Contains(Formats(), strings.ToLower(f))
}

// Formats lists the report formats.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatCSV, FormatText}
}

// ReportFile returns the path the report is written to.
func (c Config) ReportFile() string {
	if c.ReportPath != "" {
		return c.ReportPath
	}
	ext := strings.ToLower(c.Format)
	if ext == FormatText {
		ext = "txt"
	}
	return filepath.Join(c.OutputDir, "report."+ext)
}

// containsPath reports whether dir is path or one of its ancestors. Paths that
// cannot be resolved are treated as contained.
func containsPath(dir, path string) bool {
	d, errD := resolvePath(dir)
	p, errP := resolvePath(path)
	if errD != nil || errP != nil {
		return true
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// resolvePath returns the absolute form of p with symlinks resolved when p exists.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}
