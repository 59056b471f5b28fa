package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/platescan/internal/batch"
	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch <input-dir>",
		Short: "Recognize images as they arrive in a directory",
		Long: `Watch a directory and recognize every new image.

The report in the output directory is rewritten after each image. Stop with
Ctrl+C.

Examples:
  platescan watch ./incoming
  platescan watch ./incoming --output-dir results --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, pc, err := a.pipelineFor()
			if err != nil {
				return err
			}
			cfg := a.cfg.ToBatchConfig(args[0])
			settle, _ := cmd.Flags().GetDuration("settle")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			return batch.Watch(ctx, p, a.factoryFor(pc), cfg, batch.WatchOptions{
				Settle: settle,
				OnResult: func(res pipeline.Result, rep *batch.Report) {
					plate := res.PlateText
					if plate == "" {
						plate = "-"
					}
					_, _ = fmt.Fprintf(out, "%4d  %s  %s  (pass %d, fail %d)\n",
						res.Number(), res.Path, plate, rep.Pass, rep.Fail)
				},
			})
		},
	}

	fs := watchCmd.Flags()
	addPipelineFlags(fs)
	fs.StringP("output-dir", "o", "", "directory receiving the report (default \"results\")")
	fs.Bool("clean", true, "clear the output directory before watching")
	fs.String("report", "", "report path (default <output-dir>/report.<format>)")
	fs.StringP("format", "f", "", "report format (json, yaml, csv, text)")
	fs.StringSlice("include", nil, "only process file names matching these globs")
	fs.StringSlice("exclude", nil, "skip file names matching these globs")
	fs.Bool("debug", false, "write numbered intermediate frames into the output directory")
	fs.Duration("settle", batch.DefaultSettle, "quiet period before a new file is read")

	bindFlag(fs, "output-dir", "batch.output_dir")
	bindFlag(fs, "clean", "batch.clean")
	bindFlag(fs, "report", "batch.report")
	bindFlag(fs, "format", "batch.format")
	bindFlag(fs, "include", "batch.include")
	bindFlag(fs, "exclude", "batch.exclude")
	bindFlag(fs, "debug", "pipeline.debug")
	return watchCmd
}
