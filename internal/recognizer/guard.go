package recognizer

import (
	"context"
	"image"
	"sync"
)

// Guarded bounds every Recognize call by the caller's context.
//
// The wrapped engine call runs on its own goroutine; when the context expires
// first, Recognize returns ctx.Err() immediately and the engine call is left to
// finish in the background. The next call waits for it before reusing the engine.
type Guarded struct {
	inner   Engine
	mu      sync.Mutex
	pending chan struct{}
}

// Guard wraps e so that calls honour context deadlines.
func Guard(e Engine) *Guarded {
	if g, ok := e.(*Guarded); ok {
		return g
	}
	return &Guarded{inner: e}
}

// Recognize implements Engine.
func (g *Guarded) Recognize(ctx context.Context, img image.Image, p Profile) (string, error) {
	if err := g.waitIdle(ctx); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		text, err = g.inner.Recognize(ctx, img, p)
	}()

	select {
	case <-done:
		return text, err
	case <-ctx.Done():
		g.mu.Lock()
		g.pending = done
		g.mu.Unlock()
		return "", ctx.Err()
	}
}

func (g *Guarded) waitIdle(ctx context.Context) error {
	g.mu.Lock()
	pending := g.pending
	g.mu.Unlock()
	if pending == nil {
		return ctx.Err()
	}
	select {
	case <-pending:
		g.mu.Lock()
		if g.pending == pending {
			g.pending = nil
		}
		g.mu.Unlock()
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for an abandoned call and closes the wrapped engine.
func (g *Guarded) Close() error {
	g.mu.Lock()
	pending := g.pending
	g.mu.Unlock()
	if pending != nil {
		<-pending
	}
	return g.inner.Close()
}
