package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Job is one image to process. When Image is nil the worker decodes Path.
type Job struct {
	Index int
	Path  string
	Image image.Image
}

// JobsFromPaths numbers paths in order.
func JobsFromPaths(paths []string) []Job {
	jobs := make([]Job, len(paths))
	for i, p := range paths {
		jobs[i] = Job{Index: i, Path: p}
	}
	return jobs
}

// ParallelConfig controls RunParallel.
type ParallelConfig struct {
	Workers  int              // 0 uses the pipeline's Workers setting
	Progress ProgressCallback // optional
}

// RunParallel processes jobs on a pool of workers. Every worker creates its
// own engine from factory and closes it when done. Results are returned sorted
// by job index; images that cannot be decoded yield a Result with StageDecode.
//
// The run stops with an error only when an engine cannot be created or
// reports ErrEngineInit, or when ctx is cancelled. Partial results collected
// so far are returned alongside the error.
func (p *Pipeline) RunParallel(ctx context.Context, jobs []Job, factory recognizer.Factory, cfg ParallelConfig) ([]Result, error) {
	if factory == nil {
		return nil, errors.New("engine factory is nil")
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = p.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(jobs))

	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(jobs))
	defer progress.OnComplete()

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan Job)
	results := make(chan Result, len(jobs))

	g.Go(func() error {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := range workers {
		g.Go(func() error {
			return p.worker(gctx, w, queue, results, factory)
		})
	}

	collected := make(chan []Result, 1)
	go func() {
		out := make([]Result, 0, len(jobs))
		for res := range results {
			out = append(out, res)
			if res.Err != nil {
				progress.OnError(res.Number(), res.Err)
			}
			progress.OnProgress(len(out), len(jobs))
		}
		collected <- out
	}()

	err := g.Wait()
	close(results)
	out := <-collected
	SortByIndex(out)
	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

func (p *Pipeline) worker(ctx context.Context, id int, queue <-chan Job, results chan<- Result, factory recognizer.Factory) error {
	engine, err := factory()
	if err != nil {
		if !errors.Is(err, recognizer.ErrEngineInit) {
			err = fmt.Errorf("%w: %w", recognizer.ErrEngineInit, err)
		}
		return fmt.Errorf("worker %d: %w", id, err)
	}
	guarded := recognizer.Guard(engine)
	defer func() {
		if cerr := guarded.Close(); cerr != nil {
			p.logger.Warn("Failed to close OCR engine", "worker", id, "error", cerr)
		}
	}()

	for {
		select {
		case job, ok := <-queue:
			if !ok {
				return nil
			}
			res := p.runJob(ctx, guarded, job)
			results <- res
			if errors.Is(res.Err, recognizer.ErrEngineInit) {
				return fmt.Errorf("worker %d: %w", id, res.Err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) runJob(ctx context.Context, engine recognizer.Engine, job Job) Result {
	img := job.Image
	if img == nil {
		loaded, _, err := utils.LoadImage(job.Path)
		if err != nil {
			res := failed(job.Index, job.Path, StageDecode, err)
			p.logger.Warn("Skipping unreadable image", "image", job.Path, "error", err)
			return res
		}
		img = loaded
	}
	return p.Process(ctx, engine, job.Index, job.Path, img)
}
