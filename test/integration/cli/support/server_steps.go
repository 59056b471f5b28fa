package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/server"
	"github.com/cucumber/godog"
)

// theRecognitionServerIsRunning starts the HTTP API on an httptest server
// backed by the scenario's OCR engine.
func (testCtx *TestContext) theRecognitionServerIsRunning() error {
	return testCtx.startServer(server.DefaultConfig())
}

func (testCtx *TestContext) theRecognitionServerIsRunningWithLimit(perMinute int) error {
	cfg := server.DefaultConfig()
	cfg.RequestsPerMinute = perMinute
	return testCtx.startServer(cfg)
}

func (testCtx *TestContext) startServer(cfg server.Config) error {
	if err := testCtx.stopServer(); err != nil {
		return err
	}
	p, err := pipeline.NewBuilder().Build()
	if err != nil {
		return err
	}
	cfg.PoolSize = 2
	cfg.Version = "test"
	srv, err := server.NewServer(cfg, p, testCtx.Factory)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.AppServer = srv
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) stopServer() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.AppServer != nil {
		err := testCtx.AppServer.Close()
		testCtx.AppServer = nil
		return err
	}
	return nil
}

func (testCtx *TestContext) iUploadTo(name, endpoint string) error {
	path, ok := testCtx.Files[name]
	if !ok {
		return fmt.Errorf("unknown fixture %q", name)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: test controlled path
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return testCtx.do(http.MethodPost, endpoint, &body, mw.FormDataContentType())
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.do(http.MethodGet, endpoint, nil, "")
}

func (testCtx *TestContext) do(method, endpoint string, body io.Reader, contentType string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("server is not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, testCtx.HTTPServer.URL+endpoint, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := testCtx.HTTPServer.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastStatus = resp.StatusCode
	testCtx.LastBody = string(raw)
	testCtx.LastHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastStatus != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", status, testCtx.LastStatus, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastBody), &data); err != nil {
		return fmt.Errorf("response is not a JSON object: %w\nBody: %s", err, testCtx.LastBody)
	}
	return fieldEquals(data, field, expected)
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastBody, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldHaveHeader(name string) error {
	if testCtx.LastHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("response has no %s header", name)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the recognition server is running$`, testCtx.theRecognitionServerIsRunning)
	sc.Step(`^the recognition server is running with a limit of (\d+) requests per minute$`,
		testCtx.theRecognitionServerIsRunningWithLimit)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should have a "([^"]*)" header$`, testCtx.theResponseShouldHaveHeader)
}
