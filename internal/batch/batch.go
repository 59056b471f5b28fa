// Package batch runs the plate pipeline over a directory of images and writes
// the aggregate pass/fail report.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
)

// Summary is everything a run produced.
type Summary struct {
	Report     *Report
	Results    []pipeline.Result
	Files      []string
	Undecoded  int
	ReportPath string
	Duration   time.Duration
}

// Run prepares the output directory, discovers images, processes them with
// p on a worker pool and writes the report. Per-image failures end up in the
// report; an error is returned only for setup problems (input directory,
// output directory, engine initialisation) or cancellation.
func Run(ctx context.Context, p *pipeline.Pipeline, factory recognizer.Factory, cfg Config) (*Summary, error) {
	if p == nil {
		return nil, errors.New("pipeline is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	files, err := DiscoverImages(cfg.InputDir, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	if err := PrepareOutputDir(cfg.OutputDir, cfg.Clean); err != nil {
		return nil, err
	}
	slog.Info("Starting batch", "input", cfg.InputDir, "output", cfg.OutputDir, "images", len(files))

	var progress pipeline.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), 10)
	if cfg.ShowProgress && !cfg.Quiet {
		progress = pipeline.MultiProgressCallback{
			progress,
			pipeline.NewConsoleProgressCallback(os.Stderr, "Recognizing"),
		}
	}

	results, err := p.RunParallel(ctx, pipeline.JobsFromPaths(files), factory, pipeline.ParallelConfig{
		Workers:  cfg.Workers,
		Progress: progress,
	})
	if err != nil {
		return nil, fmt.Errorf("batch aborted: %w", err)
	}

	sum := &Summary{
		Report:     BuildReport(results),
		Results:    results,
		Files:      files,
		ReportPath: cfg.ReportFile(),
	}
	for _, r := range results {
		if !r.Decoded() {
			sum.Undecoded++
			slog.Warn("Skipping unreadable image", "image", r.Path, "error", r.Error)
		}
	}
	if err := sum.Report.Save(sum.ReportPath, cfg.Format); err != nil {
		return nil, err
	}
	sum.Duration = time.Since(start)

	slog.Info("Batch complete",
		"pass", sum.Report.Pass,
		"fail", sum.Report.Fail,
		"skipped", sum.Undecoded,
		"report", sum.ReportPath,
		"duration", sum.Duration.Round(time.Millisecond))
	return sum, nil
}
