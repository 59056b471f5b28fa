package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay quiet before it is processed.
const DefaultSettle = 500 * time.Millisecond

// WatchOptions tune Watch.
type WatchOptions struct {
	// Settle is the quiet period after the last write event of a file.
	Settle time.Duration
	// OnResult is called after each processed image and report update.
	OnResult func(pipeline.Result, *Report)
}

// Watch processes images as they appear in cfg.InputDir until ctx is done.
// The report at cfg.ReportFile() is rewritten after every image. Images are
// numbered in arrival order; each path is processed once. Subdirectories
// are not watched.
func Watch(ctx context.Context, p *pipeline.Pipeline, factory recognizer.Factory, cfg Config, opts WatchOptions) error {
	if p == nil {
		return errors.New("pipeline is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if info, err := os.Stat(cfg.InputDir); err != nil {
		return fmt.Errorf("input directory not accessible: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", cfg.InputDir)
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if err := PrepareOutputDir(cfg.OutputDir, cfg.Clean); err != nil {
		return err
	}

	raw, err := factory()
	if err != nil {
		if !errors.Is(err, recognizer.ErrEngineInit) {
			err = fmt.Errorf("%w: %w", recognizer.ErrEngineInit, err)
		}
		return err
	}
	engine := recognizer.Guard(raw)
	defer func() { _ = engine.Close() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(cfg.InputDir); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.InputDir, err)
	}

	w := &dirWatch{
		p:       p,
		engine:  engine,
		cfg:     cfg,
		opts:    opts,
		report:  &Report{Results: []Entry{}},
		pending: make(map[string]time.Time),
		done:    make(map[string]bool),
	}
	if err := w.report.Save(cfg.ReportFile(), cfg.Format); err != nil {
		return err
	}
	slog.Info("Watching for images", "dir", cfg.InputDir, "report", cfg.ReportFile())

	tick := time.NewTicker(opts.Settle / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch stopped", "pass", w.report.Pass, "fail", w.report.Fail)
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.observe(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "error", err)
		case now := <-tick.C:
			if err := w.flush(ctx, now); err != nil {
				return err
			}
		}
	}
}

type dirWatch struct {
	p      *pipeline.Pipeline
	engine recognizer.Engine
	cfg    Config
	opts   WatchOptions
	report *Report
	next   int

	pending map[string]time.Time
	done    map[string]bool
}

func (w *dirWatch) observe(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	path := filepath.Clean(ev.Name)
	if w.done[path] || !shouldIncludeFile(path, w.cfg.IncludePatterns, w.cfg.ExcludePatterns) {
		return
	}
	w.pending[path] = time.Now()
}

// flush processes the pending files that have been quiet for the settle time.
func (w *dirWatch) flush(ctx context.Context, now time.Time) error {
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.opts.Settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	for _, path := range ready {
		delete(w.pending, path)
		w.done[path] = true
		if err := w.process(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (w *dirWatch) process(ctx context.Context, path string) error {
	index := w.next
	w.next++

	img, _, err := utils.LoadImage(path)
	if err != nil {
		slog.Warn("Skipping unreadable image", "image", path, "error", err)
		return nil
	}
	res := w.p.Process(ctx, w.engine, index, path, img)
	if errors.Is(res.Err, recognizer.ErrEngineInit) {
		return res.Err
	}
	w.report.Add(res)
	if err := w.report.Save(w.cfg.ReportFile(), w.cfg.Format); err != nil {
		return err
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res, w.report)
	}
	return nil
}
