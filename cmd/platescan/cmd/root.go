// Package cmd implements the platescan command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/platescan/internal/config"
	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// configKeyAnnotation maps a flag onto the configuration key it overrides.
const configKeyAnnotation = "platescan/config-key"

// engineFactory builds the OCR engine factory for a resolved configuration.
// Tests replace it through SetEngineFactory.
var engineFactory = tesseractFactory

func tesseractFactory(cfg *config.Config, pc pipeline.Config) recognizer.Factory {
	return recognizer.NewTesseractFactory(recognizer.TesseractOptions{
		DataPath: cfg.TessdataDir,
		Profiles: []recognizer.Profile{pc.UpperOCR, pc.LowerOCR},
	})
}

// SetEngineFactory makes every command use f instead of Tesseract and returns
// a function restoring the previous factory.
func SetEngineFactory(f recognizer.Factory) (restore func()) {
	prev := engineFactory
	engineFactory = func(*config.Config, pipeline.Config) recognizer.Factory { return f }
	return func() { engineFactory = prev }
}

// app carries the state shared by the commands of one command tree.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "platescan",
		Short: "Korean yellow license plate recognition",
		Long: `platescan finds yellow Korean license plates in photographs, rectifies them,
reads both text bands with Tesseract and scores the result.

Examples:
  platescan image car.jpg
  platescan batch ./photos --output-dir results
  platescan watch ./incoming
  platescan serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), a.cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is platescan.yaml in ., $HOME, /etc/platescan, $XDG_CONFIG_HOME/platescan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("tessdata-dir", "", "directory containing Tesseract traineddata files")
	bindFlag(pf, "verbose", "verbose")
	bindFlag(pf, "log-level", "log_level")
	bindFlag(pf, "tessdata-dir", "tessdata_dir")

	rootCmd.AddCommand(
		newImageCmd(a),
		newBatchCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// GetRootCommand returns a new root command for tests. Executing it never
// calls os.Exit.
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads file, environment and the flags the user set on cmd.
func (a *app) loadConfig(cmd *cobra.Command) error {
	a.loader = config.NewLoader()
	applyFlagOverrides(a.loader, cmd.Flags())
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

// pipelineFor resolves the pipeline settings and builds the pipeline.
func (a *app) pipelineFor() (*pipeline.Pipeline, pipeline.Config, error) {
	pc, err := a.cfg.ToPipelineConfig()
	if err != nil {
		return nil, pipeline.Config{}, err
	}
	p, err := pipeline.NewBuilder().WithConfig(pc).WithLogger(slog.Default()).Build()
	if err != nil {
		return nil, pipeline.Config{}, err
	}
	return p, pc, nil
}

func (a *app) factoryFor(pc pipeline.Config) recognizer.Factory {
	return engineFactory(a.cfg, pc)
}

// bindFlag records the configuration key a flag overrides.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, configKeyAnnotation, []string{key})
}

// applyFlagOverrides copies every flag the user set into the loader so it
// takes precedence over file and environment values.
func applyFlagOverrides(l *config.Loader, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(keys) == 0 || !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			l.Set(keys[0], sv.GetSlice())
			return
		}
		l.Set(keys[0], f.Value.String())
	})
}

func setupLogging(w io.Writer, cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// addPipelineFlags registers the pipeline overrides shared by the processing commands.
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.String("profile", "", "tuning profile ("+strings.Join(pipeline.ProfileNames(), ", ")+")")
	fs.String("selector", "", "plate candidate selection ("+strings.Join(config.SegmentSelectors(), ", ")+")")
	fs.String("interpolation", "", "rectification interpolation ("+strings.Join(config.Interpolations(), ", ")+")")
	fs.Float64("scale", 0, "band upscale factor before OCR")
	fs.String("success-policy", "", "reliability counted as success (full-only, full-or-partial)")
	fs.String("separator", "", "text placed between the upper and lower band")
	fs.Duration("image-timeout", 0, "per-image processing timeout (0 disables it)")
	fs.IntP("workers", "w", 0, "parallel workers, each with its own OCR engine (0 = CPU count)")

	bindFlag(fs, "profile", "pipeline.profile")
	bindFlag(fs, "selector", "pipeline.selector")
	bindFlag(fs, "interpolation", "pipeline.interpolation")
	bindFlag(fs, "scale", "pipeline.scale")
	bindFlag(fs, "success-policy", "pipeline.success_policy")
	bindFlag(fs, "separator", "pipeline.separator")
	bindFlag(fs, "image-timeout", "pipeline.image_timeout")
	bindFlag(fs, "workers", "pipeline.workers")
}
