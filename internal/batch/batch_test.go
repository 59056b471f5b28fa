package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.NewBuilder().WithWorkers(2).Build()
	require.NoError(t, err)
	return p
}

func writeInputs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), dir, "a_plate")
	testutil.SavePlate(t, testutil.Blank(160, 120, testutil.Asphalt), dir, "b_blank")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_broken.jpg"), []byte("garbage"), 0o600))
	testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), dir, "d_plate")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o600))
	return dir
}

func TestRun(t *testing.T) {
	in := writeInputs(t)
	out := filepath.Join(t.TempDir(), "results")
	cfg := DefaultConfig()
	cfg.InputDir = in
	cfg.OutputDir = out

	var created atomic.Int32
	sum, err := Run(context.Background(), newPipeline(t), testutil.ScriptedFactory("07", "서1234", &created), cfg)
	require.NoError(t, err)

	assert.Len(t, sum.Files, 4, "non-image files are not discovered")
	assert.Equal(t, 1, sum.Undecoded)
	assert.Equal(t, 3, sum.Report.Pass+sum.Report.Fail, "pass+fail equals decoded images")
	assert.Equal(t, 2, sum.Report.Pass)
	assert.Equal(t, 1, sum.Report.Fail)

	require.Len(t, sum.Report.Results, 3)
	assert.Equal(t, Entry{Number: 1, Reliability: 1, LPNum: "07서1234"}, sum.Report.Results[0])
	assert.Equal(t, Entry{Number: 2, Reliability: -1, LPNum: ""}, sum.Report.Results[1])
	assert.Equal(t, 4, sum.Report.Results[2].Number, "numbers follow discovery order")

	data, err := os.ReadFile(filepath.Join(out, "report.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, 2, doc["pass"])
	assert.EqualValues(t, 1, doc["fail"])
	first := doc["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "07서1234", first["lpNum"])
}

func TestRun_DebugFramesInOutputDir(t *testing.T) {
	in := t.TempDir()
	testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), in, "plate")
	out := t.TempDir()

	p, err := pipeline.NewBuilder().WithDebugDir(out).Build()
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.InputDir = in
	cfg.OutputDir = out

	_, err = Run(context.Background(), p, testutil.ScriptedFactory("07", "서1234", nil), cfg)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "1_4_plate.png"))
	assert.FileExists(t, filepath.Join(out, "report.json"))
}

func TestRun_SetupErrors(t *testing.T) {
	p := newPipeline(t)
	factory := testutil.ScriptedFactory("07", "서1234", nil)

	t.Run("missing input", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InputDir = filepath.Join(t.TempDir(), "nope")
		cfg.OutputDir = t.TempDir()
		_, err := Run(context.Background(), p, factory, cfg)
		require.Error(t, err)
	})

	t.Run("output is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		cfg := DefaultConfig()
		cfg.InputDir = writeInputs(t)
		cfg.OutputDir = file
		_, err := Run(context.Background(), p, factory, cfg)
		require.Error(t, err)
	})

	t.Run("engine init", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InputDir = writeInputs(t)
		cfg.OutputDir = t.TempDir()
		_, err := Run(context.Background(), p, testutil.FailingFactory(errors.New("no kor")), cfg)
		require.ErrorIs(t, err, recognizer.ErrEngineInit)
	})

	t.Run("nil pipeline", func(t *testing.T) {
		_, err := Run(context.Background(), nil, factory, DefaultConfig())
		require.Error(t, err)
	})

	t.Run("output contains input", func(t *testing.T) {
		root := t.TempDir()
		in := filepath.Join(root, "photos")
		require.NoError(t, os.Mkdir(in, 0o750))
		plate := testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), in, "plate")
		keep := filepath.Join(root, "notes.txt")
		require.NoError(t, os.WriteFile(keep, []byte("x"), 0o600))

		cfg := DefaultConfig()
		cfg.InputDir = in
		cfg.OutputDir = root
		_, err := Run(context.Background(), p, factory, cfg)
		require.ErrorIs(t, err, ErrOutputContainsInput)
		assert.FileExists(t, plate)
		assert.FileExists(t, keep)
	})
}

func TestRun_EmptyDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = t.TempDir()
	cfg.OutputDir = t.TempDir()

	sum, err := Run(context.Background(), newPipeline(t), testutil.ScriptedFactory("", "", nil), cfg)
	require.NoError(t, err)
	assert.Zero(t, sum.Report.Total())
	assert.NotNil(t, sum.Report.Results)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "report.json"))
}

func TestPrepareOutputDir(t *testing.T) {
	t.Run("clears existing contents", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "old.png"), []byte("x"), 0o600))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0o750))

		require.NoError(t, PrepareOutputDir(dir, true))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("keeps contents without clean", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "old.png"), []byte("x"), 0o600))
		require.NoError(t, PrepareOutputDir(dir, false))
		assert.FileExists(t, filepath.Join(dir, "old.png"))
	})

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		require.NoError(t, PrepareOutputDir(dir, true))
		assert.DirExists(t, dir)
	})
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing input", func(c *Config) { c.InputDir = "" }, true},
		{"missing output", func(c *Config) { c.OutputDir = "" }, true},
		{"bad format", func(c *Config) { c.Format = "xml" }, true},
		{"same dir with clean", func(c *Config) { c.OutputDir = dir }, true},
		{"same dir without clean", func(c *Config) { c.OutputDir = dir; c.Clean = false }, false},
		{"ancestor with clean", func(c *Config) { c.OutputDir = filepath.Dir(dir) }, true},
		{"relative ancestor with clean", func(c *Config) { c.OutputDir = filepath.Join(dir, "..", "..") }, true},
		{"ancestor without clean", func(c *Config) { c.OutputDir = filepath.Dir(dir); c.Clean = false }, false},
		{"child of input", func(c *Config) { c.OutputDir = filepath.Join(dir, "results") }, false},
		{"sibling", func(c *Config) { c.OutputDir = filepath.Join(filepath.Dir(dir), filepath.Base(dir)+"-out") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.InputDir = dir
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReportFile(t *testing.T) {
	cfg := Config{OutputDir: "out", Format: FormatText}
	assert.Equal(t, filepath.Join("out", "report.txt"), cfg.ReportFile())
	cfg.Format = FormatYAML
	assert.Equal(t, filepath.Join("out", "report.yaml"), cfg.ReportFile())
	cfg.ReportPath = "/tmp/r.json"
	assert.Equal(t, "/tmp/r.json", cfg.ReportFile())
}
