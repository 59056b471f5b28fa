// Package recognizer adapts an OCR engine to single-line band recognition.
//
// An Engine is a capability object: it is created by a Factory, used for any
// number of Recognize calls by one goroutine, and released with Close.
// Engines are not shared between concurrent callers.
package recognizer

import (
	"context"
	"errors"
	"image"
	"strings"
)

var (
	// ErrEngineInit reports that an engine or one of its language profiles
	// could not be initialised. It indicates misconfiguration and is fatal for a run.
	ErrEngineInit = errors.New("ocr engine initialisation failed")

	// ErrEngineClosed is returned by Recognize after Close and by Pool.Acquire
	// once the pool is closed.
	ErrEngineClosed = errors.New("ocr engine closed")
)

// PageMode is the page segmentation hint passed to the engine.
type PageMode int

// Supported page segmentation hints.
const (
	PageSingleLine PageMode = iota
	PageSingleWord
	PageSingleBlock
)

// String returns the page mode name.
func (m PageMode) String() string {
	switch m {
	case PageSingleWord:
		return "single_word"
	case PageSingleBlock:
		return "single_block"
	default:
		return "single_line"
	}
}

// Profile describes how one band is recognised.
type Profile struct {
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
	Whitelist string   `json:"whitelist"`
	PageMode  PageMode `json:"page_mode"`
}

// Key identifies the engine configuration a profile needs.
func (p Profile) Key() string {
	return strings.Join(p.Languages, "+") + "|" + p.Whitelist + "|" + p.PageMode.String()
}

// Character sets used by the built-in profiles.
const (
	Digits = "0123456789"

	// PlateSyllables are the Hangul syllables printed on the lower band of plates.
	PlateSyllables = "가나다라마바사아자하허호거너더러머버서어저고노도로모보소오조구누두루무부수우주배"
)

// UpperProfile recognises the two-digit upper band.
func UpperProfile() Profile {
	return Profile{Name: "upper", Languages: []string{"eng"}, Whitelist: Digits, PageMode: PageSingleLine}
}

// LowerProfile recognises the syllable and four digits of the lower band.
func LowerProfile() Profile {
	return Profile{Name: "lower", Languages: []string{"kor"}, Whitelist: Digits + PlateSyllables, PageMode: PageSingleLine}
}

// Engine recognises the text of a single preprocessed band image.
// The returned text is raw engine output: it may be empty or end with line breaks.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, p Profile) (string, error)
	Close() error
}

// Factory creates a fresh Engine, typically one per worker.
type Factory func() (Engine, error)
