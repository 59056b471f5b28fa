package recognizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOptions configures Tesseract engines.
type TesseractOptions struct {
	// DataPath overrides TESSDATA_PREFIX when set.
	DataPath string
	// Profiles are initialised eagerly so missing language data fails at creation.
	Profiles []Profile
}

// Tesseract is an Engine backed by libtesseract through gosseract.
// It keeps one client per distinct profile configuration, so switching between
// the upper and lower band never re-initialises the underlying API.
type Tesseract struct {
	opts    TesseractOptions
	mu      sync.Mutex
	clients map[string]*gosseract.Client
	ready   map[string]bool
	closed  bool
}

// NewTesseract creates an engine and initialises every configured profile.
// Initialisation failures are wrapped in ErrEngineInit.
func NewTesseract(opts TesseractOptions) (*Tesseract, error) {
	t := &Tesseract{
		opts:    opts,
		clients: make(map[string]*gosseract.Client),
		ready:   make(map[string]bool),
	}
	for _, p := range opts.Profiles {
		if err := t.warmup(p); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return t, nil
}

// NewTesseractFactory returns a Factory producing Tesseract engines.
func NewTesseractFactory(opts TesseractOptions) Factory {
	return func() (Engine, error) {
		return NewTesseract(opts)
	}
}

// Version returns the linked libtesseract version.
func Version() string { return gosseract.Version() }

// warmup runs a blank recognition so that tesseract loads the profile's language data.
func (t *Tesseract) warmup(p Profile) error {
	blank := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	if _, err := t.recognize(blank, p); err != nil {
		return err
	}
	slog.Debug("Tesseract profile initialised", "profile", p.Name, "languages", p.Languages)
	return nil
}

// Recognize implements Engine.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, p Profile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := t.recognize(img, p)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text, nil
}

func (t *Tesseract) recognize(img image.Image, p Profile) (string, error) {
	if img == nil {
		return "", errors.New("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode band image: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", ErrEngineClosed
	}

	client, err := t.clientFor(p)
	if err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		if t.ready[p.Key()] {
			return "", fmt.Errorf("ocr failed: %w", err)
		}
		// The first Text call initialises the API; failing here means the
		// language data or variables are unusable.
		_ = client.Close()
		delete(t.clients, p.Key())
		return "", fmt.Errorf("%w: profile %s: %w", ErrEngineInit, p.Name, err)
	}
	t.ready[p.Key()] = true
	return text, nil
}

// clientFor returns the client configured for p, creating it on first use.
func (t *Tesseract) clientFor(p Profile) (*gosseract.Client, error) {
	if c, ok := t.clients[p.Key()]; ok {
		return c, nil
	}
	c := gosseract.NewClient()
	if t.opts.DataPath != "" {
		if err := c.SetTessdataPrefix(t.opts.DataPath); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: tessdata prefix: %w", ErrEngineInit, err)
		}
	}
	if err := c.SetLanguage(p.Languages...); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: language %v: %w", ErrEngineInit, p.Languages, err)
	}
	if err := c.SetPageSegMode(pageSegMode(p.PageMode)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: page mode: %w", ErrEngineInit, err)
	}
	if p.Whitelist != "" {
		if err := c.SetWhitelist(p.Whitelist); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: whitelist: %w", ErrEngineInit, err)
		}
	}
	// Plate text is not dictionary text.
	_ = c.SetVariable("load_system_dawg", "false")
	_ = c.SetVariable("load_freq_dawg", "false")

	t.clients[p.Key()] = c
	return c, nil
}

func pageSegMode(m PageMode) gosseract.PageSegMode {
	switch m {
	case PageSingleWord:
		return gosseract.PSM_SINGLE_WORD
	case PageSingleBlock:
		return gosseract.PSM_SINGLE_BLOCK
	default:
		return gosseract.PSM_SINGLE_LINE
	}
}

// Close releases every tesseract client held by the engine.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	var errs []error
	for key, c := range t.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(t.clients, key)
	}
	return errors.Join(errs...)
}
