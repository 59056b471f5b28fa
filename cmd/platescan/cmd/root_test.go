package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/platescan/internal/config"
	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/server"
	"github.com/MeKo-Tech/platescan/internal/testutil"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command line in isolation from any user config.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	root := GetRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func useScriptedEngine(t *testing.T, upper, lower string) {
	t.Helper()
	t.Cleanup(SetEngineFactory(testutil.ScriptedFactory(upper, lower, nil)))
}

func plateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), dir, "a_plate")
	testutil.SavePlate(t, testutil.Blank(160, 120, testutil.Asphalt), dir, "b_blank")
	return dir
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "Available Commands:")
	for _, sub := range []string{"batch", "image", "watch", "serve", "config", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "platescan dev")
}

func TestBatchCommand(t *testing.T) {
	useScriptedEngine(t, "07", "서1234")
	in := plateDir(t)
	outDir := filepath.Join(t.TempDir(), "results")

	out, logs, err := run(t, "batch", in, "--output-dir", outDir, "--progress=false", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Pass: 1")
	assert.Contains(t, out, "Fail: 1")
	assert.Contains(t, out, filepath.Join(outDir, "report.json"))
	assert.Contains(t, logs, `"msg":"Batch complete"`, "logs are JSON on stderr")

	data, err := os.ReadFile(filepath.Join(outDir, "report.json"))
	require.NoError(t, err)
	var rep struct {
		Pass    int `json:"pass"`
		Fail    int `json:"fail"`
		Results []struct {
			Number      int    `json:"number"`
			Reliability int    `json:"reliability"`
			LPNum       string `json:"lpNum"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, 1, rep.Pass)
	assert.Equal(t, 1, rep.Fail)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, "07서1234", rep.Results[0].LPNum)
	assert.Equal(t, -1, rep.Results[1].Reliability)
}

func TestBatchCommand_Overrides(t *testing.T) {
	useScriptedEngine(t, "07", "서1234")
	in := plateDir(t)
	outDir := t.TempDir()

	_, _, err := run(t, "batch", in, "-o", outDir, "--progress=false", "--separator", " ",
		"--format", "yaml", "--exclude", "b_*")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "report.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "lpNum: 07 서1234")
	assert.Contains(t, string(data), "pass: 1")
	assert.Contains(t, string(data), "fail: 0")
}

func TestBatchCommand_Errors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		useScriptedEngine(t, "07", "서1234")
		_, _, err := run(t, "batch", filepath.Join(t.TempDir(), "nope"), "-o", t.TempDir())
		require.Error(t, err)
	})

	t.Run("engine init", func(t *testing.T) {
		t.Cleanup(SetEngineFactory(testutil.FailingFactory(errors.New("no tessdata"))))
		_, _, err := run(t, "batch", plateDir(t), "-o", t.TempDir(), "--progress=false")
		require.ErrorIs(t, err, recognizer.ErrEngineInit)
	})

	t.Run("unknown profile", func(t *testing.T) {
		useScriptedEngine(t, "07", "서1234")
		_, _, err := run(t, "batch", plateDir(t), "-o", t.TempDir(), "--profile", "turbo")
		require.Error(t, err)
	})

	t.Run("missing argument", func(t *testing.T) {
		_, _, err := run(t, "batch")
		require.Error(t, err)
	})
}

func TestImageCommand(t *testing.T) {
	useScriptedEngine(t, "07", "서1234")
	dir := t.TempDir()
	path := testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), dir, "car")

	out, _, err := run(t, "image", path)
	require.NoError(t, err)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "07서1234", res.PlateText)
	assert.EqualValues(t, 1, res.Reliability)
	assert.True(t, res.Success)
	assert.Equal(t, pipeline.StageDone, res.Stage)
	assert.Equal(t, path, res.Path)
}

func TestImageCommand_TextAndMany(t *testing.T) {
	useScriptedEngine(t, "07", "서1234")
	dir := t.TempDir()
	plate := testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), dir, "car")
	blank := testutil.SavePlate(t, testutil.Blank(100, 80, testutil.Asphalt), dir, "road")

	out, _, err := run(t, "image", plate, blank, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, plate+": 07서1234 (reliability 1, stage done)")
	assert.Contains(t, out, blank+": - (reliability -1, stage detect)")

	out, _, err = run(t, "image", plate, blank)
	require.NoError(t, err)
	var results []pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 2)
}

func TestImageCommand_Errors(t *testing.T) {
	useScriptedEngine(t, "07", "서1234")
	dir := t.TempDir()
	plate := testutil.SavePlate(t, testutil.RenderPlate(testutil.DefaultPlateSpec()), dir, "car")

	_, _, err := run(t, "image", plate, "--format", "xml")
	require.ErrorContains(t, err, "unsupported format")

	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not a png"), 0o600))
	_, _, err = run(t, "image", broken)
	require.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platescan.yaml")

	out, _, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to")

	_, _, err = run(t, "config", "init", path)
	require.ErrorContains(t, err, "already exists")
	_, _, err = run(t, "config", "init", path, "--force")
	require.NoError(t, err)

	out, _, err = run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from "+path)
	assert.Contains(t, out, "profile: default")
	assert.Contains(t, out, "output_dir: results")
}

func TestConfigFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  profile: strict\nlog_level: warn\n"), 0o600))

	out, _, err := run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "profile: strict")
	assert.Contains(t, out, "log_level: warn")

	out, _, err = run(t, "--config", path, "--log-level", "debug", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "log_level: debug", "flags win over the file")
}

func TestApplyFlagOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addPipelineFlags(fs)
	fs.StringSlice("include", nil, "")
	bindFlag(fs, "include", "batch.include")
	require.NoError(t, fs.Parse([]string{"--profile", "legacy", "--image-timeout", "5s", "--include", "*.jpg,*.png"}))

	l := config.NewLoader()
	applyFlagOverrides(l, fs)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "legacy", cfg.Pipeline.Profile)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.ImageTimeout)
	assert.Equal(t, []string{"*.jpg", "*.png"}, cfg.Batch.Include)
	assert.Nil(t, cfg.Pipeline.Separator, "unset flags leave the profile value alone")
	assert.Empty(t, cfg.Pipeline.Selector)
}

func TestServeShutsDown(t *testing.T) {
	p, err := pipeline.NewBuilder().Build()
	require.NoError(t, err)
	cfg := server.DefaultConfig()
	cfg.Port = 0
	cfg.PoolSize = 1
	srv, err := server.NewServer(cfg, p, testutil.ScriptedFactory("07", "서1234", nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, cfg, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
