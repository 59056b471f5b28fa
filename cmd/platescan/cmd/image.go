package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

func newImageCmd(a *app) *cobra.Command {
	imageCmd := &cobra.Command{
		Use:   "image <file>...",
		Short: "Recognize the plate in one or more images",
		Long: `Recognize the plate in each image and print the results.

A single image prints one JSON object, several images print an array.

Examples:
  platescan image car.jpg
  platescan image front.png rear.png --format text
  platescan image car.jpg --debug-dir frames`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if format != outputFormatJSON && format != outputFormatText {
				return fmt.Errorf("unsupported format %q (must be %s or %s)", format, outputFormatJSON, outputFormatText)
			}
			debugDir, _ := cmd.Flags().GetString("debug-dir")
			outputFile, _ := cmd.Flags().GetString("output")

			pc, err := a.cfg.ToPipelineConfig()
			if err != nil {
				return err
			}
			pc.DebugDir = debugDir
			p, err := pipeline.NewBuilder().WithConfig(pc).Build()
			if err != nil {
				return err
			}

			raw, err := a.factoryFor(pc)()
			if err != nil {
				if !errors.Is(err, recognizer.ErrEngineInit) {
					err = fmt.Errorf("%w: %w", recognizer.ErrEngineInit, err)
				}
				return err
			}
			engine := recognizer.Guard(raw)
			defer func() { _ = engine.Close() }()

			results := make([]pipeline.Result, 0, len(args))
			for i, path := range args {
				img, _, err := utils.LoadImage(path)
				if err != nil {
					return err
				}
				res := p.Process(cmd.Context(), engine, i, path, img)
				if errors.Is(res.Err, recognizer.ErrEngineInit) {
					return res.Err
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile) //nolint:gosec // user supplied output path
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}
			if format == outputFormatText {
				writeResultsText(out, results)
				return nil
			}
			return writeResultsJSON(out, results)
		},
	}

	fs := imageCmd.Flags()
	addPipelineFlags(fs)
	fs.String("format", outputFormatJSON, "output format (json, text)")
	fs.StringP("output", "o", "", "write the results to this file instead of stdout")
	fs.String("debug-dir", "", "write numbered intermediate frames into this directory")
	return imageCmd
}

func writeResultsJSON(w io.Writer, results []pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	return enc.Encode(results)
}

func writeResultsText(w io.Writer, results []pipeline.Result) {
	for _, r := range results {
		plate := r.PlateText
		if plate == "" {
			plate = "-"
		}
		_, _ = fmt.Fprintf(w, "%s: %s (reliability %d, stage %s)\n", r.Path, plate, int(r.Reliability), r.Stage)
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "  error: %s\n", r.Error)
		}
	}
}
