package cmd

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/platescan/internal/batch"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch <input-dir>",
		Short: "Recognize every plate image in a directory and write a report",
		Long: `Process all images of a directory and write the pass/fail report.

The output directory is cleared first unless --clean=false is given. The report
lists one entry per decodable image, numbered in sorted path order.

Examples:
  platescan batch ./photos
  platescan batch ./photos --output-dir out --format yaml
  platescan batch ./photos --recursive --include "*.jpg" --debug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, pc, err := a.pipelineFor()
			if err != nil {
				return err
			}
			cfg := a.cfg.ToBatchConfig(args[0])
			cfg.Workers = pc.Workers
			cfg.Quiet, _ = cmd.Flags().GetBool("quiet")

			sum, err := batch.Run(cmd.Context(), p, a.factoryFor(pc), cfg)
			if err != nil {
				return err
			}
			if cfg.Quiet {
				return nil
			}
			out := cmd.OutOrStdout()
			sum.Report.WriteText(out)
			if sum.Undecoded > 0 {
				_, _ = fmt.Fprintf(out, "Skipped %d undecodable image(s)\n", sum.Undecoded)
			}
			_, _ = fmt.Fprintf(out, "Report written to %s\n", sum.ReportPath)
			return nil
		},
	}

	fs := batchCmd.Flags()
	addPipelineFlags(fs)
	fs.StringP("output-dir", "o", "", "directory receiving the report and debug frames (default \"results\")")
	fs.Bool("clean", true, "clear the output directory before the run")
	fs.String("report", "", "report path (default <output-dir>/report.<format>)")
	fs.StringP("format", "f", "", "report format ("+strings.Join(batch.Formats(), ", ")+")")
	fs.BoolP("recursive", "r", false, "descend into subdirectories")
	fs.StringSlice("include", nil, "only process file names matching these globs")
	fs.StringSlice("exclude", nil, "skip file names matching these globs")
	fs.Bool("progress", true, "show a progress bar on stderr")
	fs.Bool("debug", false, "write numbered intermediate frames into the output directory")
	fs.BoolP("quiet", "q", false, "print nothing on success")

	bindFlag(fs, "output-dir", "batch.output_dir")
	bindFlag(fs, "clean", "batch.clean")
	bindFlag(fs, "report", "batch.report")
	bindFlag(fs, "format", "batch.format")
	bindFlag(fs, "recursive", "batch.recursive")
	bindFlag(fs, "include", "batch.include")
	bindFlag(fs, "exclude", "batch.exclude")
	bindFlag(fs, "progress", "batch.show_progress")
	bindFlag(fs, "debug", "pipeline.debug")
	return batchCmd
}
