package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/platescan/internal/batch"
	"github.com/MeKo-Tech/platescan/internal/testutil"
	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) saveFixture(name string, img image.Image) error {
	path := filepath.Join(testCtx.InputDir, name)
	if err := utils.SavePNG(img, path); err != nil {
		return fmt.Errorf("failed to write fixture %s: %w", name, err)
	}
	testCtx.Files[name] = path
	return nil
}

func (testCtx *TestContext) aPlatePhoto(name string) error {
	return testCtx.saveFixture(name, testutil.RenderPlate(testutil.DefaultPlateSpec()))
}

func (testCtx *TestContext) aPhotoWithoutAPlate(name string) error {
	return testCtx.saveFixture(name, testutil.Blank(200, 150, testutil.Asphalt))
}

func (testCtx *TestContext) aCorruptImage(name string) error {
	path := filepath.Join(testCtx.InputDir, name)
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o600); err != nil {
		return err
	}
	testCtx.Files[name] = path
	return nil
}

func (testCtx *TestContext) aTextFile(name string) error {
	return os.WriteFile(filepath.Join(testCtx.InputDir, name), []byte("notes"), 0o600)
}

func (testCtx *TestContext) theOCREngineReads(upper, lower string) error {
	testCtx.useEngine(testutil.ScriptedFactory(upper, lower, nil))
	return nil
}

func (testCtx *TestContext) theOCREngineCannotBeInitialised() error {
	testCtx.useEngine(testutil.FailingFactory(errors.New("tessdata not found")))
	return nil
}

func (testCtx *TestContext) readReport() (*batch.Report, error) {
	path := filepath.Join(testCtx.OutputDir, "report.json")
	data, err := os.ReadFile(path) //nolint:gosec // G304: test controlled path
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var rep batch.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("report is not valid JSON: %w", err)
	}
	return &rep, nil
}

func (testCtx *TestContext) theReportShouldShow(pass, fail int) error {
	rep, err := testCtx.readReport()
	if err != nil {
		return err
	}
	if rep.Pass != pass || rep.Fail != fail {
		return fmt.Errorf("report shows %d passed and %d failed, expected %d and %d", rep.Pass, rep.Fail, pass, fail)
	}
	return nil
}

func (testCtx *TestContext) theReportShouldHaveEntries(n int) error {
	rep, err := testCtx.readReport()
	if err != nil {
		return err
	}
	if len(rep.Results) != n {
		return fmt.Errorf("report has %d entries, expected %d", len(rep.Results), n)
	}
	return nil
}

func (testCtx *TestContext) reportEntryShouldBe(pos, number, reliability int, plate string) error {
	rep, err := testCtx.readReport()
	if err != nil {
		return err
	}
	if pos < 1 || pos > len(rep.Results) {
		return fmt.Errorf("report has %d entries, no entry %d", len(rep.Results), pos)
	}
	want := batch.Entry{Number: number, Reliability: reliability, LPNum: plate}
	if got := rep.Results[pos-1]; got != want {
		return fmt.Errorf("report entry %d is %+v, expected %+v", pos, got, want)
	}
	return nil
}

// RegisterPlateSteps registers fixture, engine and report steps.
func (testCtx *TestContext) RegisterPlateSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a plate photo "([^"]*)"$`, testCtx.aPlatePhoto)
	sc.Step(`^a photo without a plate "([^"]*)"$`, testCtx.aPhotoWithoutAPlate)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^the OCR engine reads "([^"]*)" and "([^"]*)"$`, testCtx.theOCREngineReads)
	sc.Step(`^the OCR engine cannot be initialised$`, testCtx.theOCREngineCannotBeInitialised)

	sc.Step(`^the report should show (\d+) passed and (\d+) failed$`, testCtx.theReportShouldShow)
	sc.Step(`^the report should have (\d+) entries$`, testCtx.theReportShouldHaveEntries)
	sc.Step(`^report entry (\d+) should have number (\d+), reliability (-?\d+) and plate "([^"]*)"$`,
		testCtx.reportEntryShouldBe)
}
