package testutil

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/platescan/internal/recognizer"
)

// ScriptedEngine is an in-memory recognizer.Engine that answers by profile name.
type ScriptedEngine struct {
	mu        sync.Mutex
	Responses map[string]string // profile name -> raw text
	Err       error             // returned by every Recognize call when set
	Calls     []string          // profile names in call order
	Closed    bool
}

// NewScriptedEngine returns an engine answering upper and lower with the given texts.
func NewScriptedEngine(upper, lower string) *ScriptedEngine {
	return &ScriptedEngine{Responses: map[string]string{"upper": upper, "lower": lower}}
}

// Recognize implements recognizer.Engine.
func (e *ScriptedEngine) Recognize(ctx context.Context, _ image.Image, p recognizer.Profile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Closed {
		return "", recognizer.ErrEngineClosed
	}
	e.Calls = append(e.Calls, p.Name)
	if e.Err != nil {
		return "", e.Err
	}
	return e.Responses[p.Name], nil
}

// Close implements recognizer.Engine.
func (e *ScriptedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}

// CallCount returns the number of Recognize calls so far.
func (e *ScriptedEngine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// ScriptedFactory returns a factory producing scripted engines and counts
// how many engines were created.
func ScriptedFactory(upper, lower string, created *atomic.Int32) recognizer.Factory {
	return func() (recognizer.Engine, error) {
		if created != nil {
			created.Add(1)
		}
		return NewScriptedEngine(upper, lower), nil
	}
}

// FailingFactory returns a factory whose engines never initialise.
func FailingFactory(err error) recognizer.Factory {
	return func() (recognizer.Engine, error) {
		return nil, err
	}
}

// BlockingEngine blocks every Recognize call until Release is closed.
type BlockingEngine struct {
	Release chan struct{}
}

// Recognize implements recognizer.Engine.
func (e *BlockingEngine) Recognize(_ context.Context, _ image.Image, _ recognizer.Profile) (string, error) {
	<-e.Release
	return "", nil
}

// Close implements recognizer.Engine.
func (e *BlockingEngine) Close() error { return nil }
