package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/platescan/cmd/platescan/cmd"
	"github.com/cucumber/godog"
)

// iRunCommand executes a platescan command line in-process and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "platescan" {
		parts = parts[1:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	root := cmd.GetRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts)

	start := time.Now()
	err := root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command %q failed: %w\nOutput: %s\nStderr: %s",
			testCtx.LastCommand, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command %q succeeded when it should have failed\nOutput: %s",
			testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	expected = testCtx.substituteCommandVariables(expected)
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", unexpected, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention matches case-insensitively against the error and stderr.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", text)
	}
	full := testCtx.LastError.Error() + " " + testCtx.LastStderr
	if !strings.Contains(strings.ToLower(full), strings.ToLower(text)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", text, full)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theJSONOutputFieldShouldBe(field, expected string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &data); err != nil {
		return fmt.Errorf("output is not a JSON object: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return fieldEquals(data, field, expected)
}

// theLogsShouldContain checks the structured log written to stderr.
func (testCtx *TestContext) theLogsShouldContain(text string) error {
	if !strings.Contains(testCtx.LastStderr, text) {
		return fmt.Errorf("logs do not contain '%s'\nLogs: %s", text, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(path string) error {
	path = testCtx.substituteCommandVariables(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(path, text string) error {
	path = testCtx.substituteCommandVariables(path)
	data, err := os.ReadFile(path) //nolint:gosec // G304: test controlled path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", path, text, data)
	}
	return nil
}

func (testCtx *TestContext) theOutputDirectoryShouldContain(name string) error {
	return testCtx.theFileShouldExist(filepath.Join(testCtx.OutputDir, name))
}

// fieldEquals walks a dotted path through decoded JSON and compares the
// formatted leaf value with expected.
func fieldEquals(data map[string]any, field, expected string) error {
	var current any = data
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot navigate into non-object at '%s'", part)
		}
		if current, ok = obj[part]; !ok {
			return fmt.Errorf("field '%s' not found in JSON", field)
		}
	}
	if got := fmt.Sprint(current); got != expected {
		return fmt.Errorf("field '%s' is %q, expected %q", field, got, expected)
	}
	return nil
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON output field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONOutputFieldShouldBe)
	sc.Step(`^the logs should contain "([^"]*)"$`, testCtx.theLogsShouldContain)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the output directory should contain "([^"]*)"$`, testCtx.theOutputDirectoryShouldContain)
}
