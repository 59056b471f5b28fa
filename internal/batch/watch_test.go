package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/testutil"
	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "results")
	cfg := DefaultConfig()
	cfg.InputDir = in
	cfg.OutputDir = out

	var (
		mu   sync.Mutex
		seen []pipeline.Result
	)
	opts := WatchOptions{
		Settle: 50 * time.Millisecond,
		OnResult: func(res pipeline.Result, _ *Report) {
			mu.Lock()
			seen = append(seen, res)
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, newPipeline(t), testutil.ScriptedFactory("07", "서1234", nil), cfg, opts)
	}()

	reportPath := filepath.Join(out, "report.json")
	require.Eventually(t, func() bool {
		_, err := os.Stat(reportPath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "empty report is written once watching")

	// Rename a finished file into place so the watcher never sees a partial write.
	staging := t.TempDir()
	tmp := filepath.Join(staging, "plate.png")
	require.NoError(t, utils.SavePNG(testutil.RenderPlate(testutil.DefaultPlateSpec()), tmp))
	require.NoError(t, os.Rename(tmp, filepath.Join(in, "plate.png")))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("ignored"), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "07서1234", seen[0].PlateText)
	assert.Equal(t, 1, seen[0].Number())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pass": 1`)
	assert.Contains(t, string(data), "07서1234")
}

func TestWatch_SetupErrors(t *testing.T) {
	p := newPipeline(t)
	factory := testutil.ScriptedFactory("07", "서1234", nil)

	t.Run("missing input", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InputDir = filepath.Join(t.TempDir(), "nope")
		cfg.OutputDir = t.TempDir()
		err := Watch(context.Background(), p, factory, cfg, WatchOptions{})
		require.Error(t, err)
	})

	t.Run("engine init", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InputDir = t.TempDir()
		cfg.OutputDir = t.TempDir()
		err := Watch(context.Background(), p, testutil.FailingFactory(errors.New("no tessdata")), cfg, WatchOptions{})
		require.ErrorIs(t, err, recognizer.ErrEngineInit)
	})

	t.Run("nil pipeline", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InputDir = t.TempDir()
		cfg.OutputDir = t.TempDir()
		err := Watch(context.Background(), nil, factory, cfg, WatchOptions{})
		require.Error(t, err)
	})

	t.Run("output contains input", func(t *testing.T) {
		root := t.TempDir()
		in := filepath.Join(root, "photos")
		require.NoError(t, os.Mkdir(in, 0o750))
		keep := filepath.Join(root, "keep.txt")
		require.NoError(t, os.WriteFile(keep, []byte("x"), 0o600))

		cfg := DefaultConfig()
		cfg.InputDir = in
		cfg.OutputDir = root
		err := Watch(context.Background(), p, factory, cfg, WatchOptions{})
		require.ErrorIs(t, err, ErrOutputContainsInput)
		assert.DirExists(t, in)
		assert.FileExists(t, keep)
	})
}
