package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/platescan/internal/preprocess"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/utils"
)

// Process runs the full flow on one decoded frame with the caller's engine.
// It never returns an error: every failure is recorded in the Result.
// A Result whose Err wraps recognizer.ErrEngineInit signals a broken engine
// configuration that should stop the run.
func (p *Pipeline) Process(ctx context.Context, engine recognizer.Engine, index int, path string, img image.Image) Result {
	start := time.Now()
	res := p.process(ctx, engine, index, path, img)
	res.Duration = time.Since(start)
	p.stats.Record(res)
	p.logResult(res)
	return res
}

func (p *Pipeline) process(ctx context.Context, engine recognizer.Engine, index int, path string, img image.Image) Result {
	if p.cfg.ImageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ImageTimeout)
		defer cancel()
	}
	if img == nil || img.Bounds().Empty() {
		return failed(index, path, StageDecode, errors.New("input image is empty"))
	}
	if engine == nil {
		return failed(index, path, StageRecognize, fmt.Errorf("%w: no engine", recognizer.ErrEngineInit))
	}
	if err := ctx.Err(); err != nil {
		return failed(index, path, StageDetect, err)
	}

	dump := p.newDumper(index)

	det, ok := p.segmenter.Find(img)
	if det.Mask != nil {
		dump.save("1_mask", det.Mask)
		dump.save("2_edges", det.Edges)
	}
	if !ok {
		return failed(index, path, StageDetect, nil)
	}
	corners := det.Corners
	dump.render("3_corners", func() image.Image { return RenderCorners(img, corners) })

	plate, err := p.rectifier.Rectify(img, corners)
	if err != nil {
		return failAfterDetect(index, path, StageRectify, err, corners)
	}
	dump.save("4_plate", plate)

	upperBand, lowerBand, err := preprocess.Split(plate, p.cfg.Split)
	if err != nil {
		return failAfterDetect(index, path, StagePreprocess, err, corners)
	}
	dump.save("5_upper", upperBand)
	dump.save("6_lower", lowerBand)

	upperBin, err := preprocess.Prepare(upperBand, p.cfg.UpperPrep)
	if err != nil {
		return failAfterDetect(index, path, StagePreprocess, err, corners)
	}
	if p.cfg.UpperMargin.Enabled() {
		preprocess.MaskMargins(upperBin, p.cfg.UpperMargin.Left, p.cfg.UpperMargin.Right)
	}
	lowerBin, err := preprocess.Prepare(lowerBand, p.cfg.LowerPrep)
	if err != nil {
		return failAfterDetect(index, path, StagePreprocess, err, corners)
	}
	dump.save("7_upper_ocr", upperBin)
	dump.save("8_lower_ocr", lowerBin)

	rawUpper, err := engine.Recognize(ctx, upperBin, p.cfg.UpperOCR)
	if err != nil {
		return failAfterDetect(index, path, StageRecognize, fmt.Errorf("upper band: %w", err), corners)
	}
	rawLower, err := engine.Recognize(ctx, lowerBin, p.cfg.LowerOCR)
	if err != nil {
		return failAfterDetect(index, path, StageRecognize, fmt.Errorf("lower band: %w", err), corners)
	}

	out := p.validator.Evaluate(rawUpper, rawLower)
	return Result{
		ImageIndex:  index,
		Path:        path,
		Reliability: out.Reliability,
		PlateText:   out.PlateText,
		Success:     out.Success,
		Upper:       out.Upper,
		Lower:       out.Lower,
		Corners:     &corners,
		Stage:       StageDone,
	}
}

// failAfterDetect records a failure that happened once corners were known.
func failAfterDetect(index int, path string, stage Stage, err error, corners utils.Quad) Result {
	res := failed(index, path, stage, err)
	res.Corners = &corners
	return res
}

func (p *Pipeline) logResult(res Result) {
	attrs := []any{
		"number", res.Number(),
		"plate", res.PlateText,
		"reliability", int(res.Reliability),
		"stage", res.Stage,
		"duration", res.Duration.Round(time.Millisecond),
	}
	if res.Path != "" {
		attrs = append(attrs, "image", res.Path)
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err)
		p.logger.Warn("Plate recognition failed", attrs...)
		return
	}
	if res.Stage == StageDetect {
		p.logger.Info("No plate candidate found", attrs...)
		return
	}
	p.logger.Info("Plate processed", attrs...)
}
