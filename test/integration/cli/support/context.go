package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/platescan/cmd/platescan/cmd"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/server"
	"github.com/MeKo-Tech/platescan/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	TempDir   string
	InputDir  string
	OutputDir string
	Files     map[string]string // fixture name -> path

	// OCR engine used by commands and the server
	Factory       recognizer.Factory
	restoreEngine func()

	// Server state
	HTTPServer  *httptest.Server
	AppServer   *server.Server
	LastStatus  int
	LastBody    string
	LastHeaders map[string]string

	prevHome string
}

// NewTestContext creates a scenario context with its own temp directories and
// a HOME that contains no configuration file.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "platescan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	ctx := &TestContext{
		TempDir:   tempDir,
		InputDir:  filepath.Join(tempDir, "input"),
		OutputDir: filepath.Join(tempDir, "results"),
		Files:     map[string]string{},
		prevHome:  os.Getenv("HOME"),
	}
	if err := os.MkdirAll(ctx.InputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create input directory: %w", err)
	}
	_ = os.Setenv("HOME", filepath.Join(tempDir, "home"))
	ctx.useEngine(testutil.ScriptedFactory("07", "서1234", nil))
	return ctx, nil
}

// useEngine routes every command and server of the scenario to f.
func (testCtx *TestContext) useEngine(f recognizer.Factory) {
	if testCtx.restoreEngine != nil {
		testCtx.restoreEngine()
	}
	testCtx.Factory = f
	testCtx.restoreEngine = cmd.SetEngineFactory(f)
}

// Cleanup stops the server, restores global state and removes temp files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if err := testCtx.stopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if testCtx.restoreEngine != nil {
		testCtx.restoreEngine()
		testCtx.restoreEngine = nil
	}
	_ = os.Setenv("HOME", testCtx.prevHome)
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}

// substituteCommandVariables expands {input}, {output}, {tmp} and {file:name}.
func (testCtx *TestContext) substituteCommandVariables(s string) string {
	s = strings.ReplaceAll(s, "{input}", testCtx.InputDir)
	s = strings.ReplaceAll(s, "{output}", testCtx.OutputDir)
	s = strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
	for name, path := range testCtx.Files {
		s = strings.ReplaceAll(s, "{file:"+name+"}", path)
	}
	return s
}
