package pipeline

import (
	"time"

	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/MeKo-Tech/platescan/internal/validate"
)

// Stage names the step at which processing of an image stopped.
type Stage string

// Pipeline stages in execution order.
const (
	StageDecode     Stage = "decode"
	StageDetect     Stage = "detect"
	StageRectify    Stage = "rectify"
	StagePreprocess Stage = "preprocess"
	StageRecognize  Stage = "recognize"
	StageDone       Stage = "done"
)

// Result is the recognition record of one image. It is not modified once
// it has been handed to the caller.
type Result struct {
	ImageIndex  int                  `json:"image_index"`
	Path        string               `json:"path,omitempty"`
	Reliability validate.Reliability `json:"reliability"`
	PlateText   string               `json:"plate_text"`
	Success     bool                 `json:"success"`

	Upper   string      `json:"upper,omitempty"`
	Lower   string      `json:"lower,omitempty"`
	Corners *utils.Quad `json:"corners,omitempty"`

	Stage    Stage         `json:"stage"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Number is the 1-based position of the image in discovery order.
func (r Result) Number() int { return r.ImageIndex + 1 }

// Decoded reports whether the image could be read at all.
func (r Result) Decoded() bool { return r.Stage != StageDecode }

func failed(index int, path string, stage Stage, err error) Result {
	r := Result{
		ImageIndex:  index,
		Path:        path,
		Reliability: validate.Invalid,
		Stage:       stage,
		Err:         err,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
