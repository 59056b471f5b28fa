package recognizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool hands out engines to concurrent callers, at most one caller per engine.
// Engines are created eagerly so that initialisation errors surface at startup.
type Pool struct {
	engines chan Engine
	all     []Engine
	closed  chan struct{}
	once    sync.Once
}

// NewPool creates size engines from factory.
func NewPool(factory Factory, size int) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("engine factory is nil")
	}
	if size <= 0 {
		size = 1
	}
	p := &Pool{engines: make(chan Engine, size), closed: make(chan struct{})}
	for i := range size {
		e, err := factory()
		if err != nil {
			_ = p.Close()
			if !errors.Is(err, ErrEngineInit) {
				err = fmt.Errorf("%w: %w", ErrEngineInit, err)
			}
			return nil, fmt.Errorf("engine %d: %w", i, err)
		}
		g := Guard(e)
		p.all = append(p.all, g)
		p.engines <- g
	}
	return p, nil
}

// Size returns the number of engines in the pool.
func (p *Pool) Size() int { return len(p.all) }

// Acquire blocks until an engine is free, the pool is closed or ctx is done.
// It returns ErrEngineClosed once Close has been called.
func (p *Pool) Acquire(ctx context.Context) (Engine, error) {
	select {
	case <-p.closed:
		return nil, ErrEngineClosed
	default:
	}
	select {
	case e := <-p.engines:
		return e, nil
	case <-p.closed:
		return nil, ErrEngineClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns an engine obtained from Acquire. After Close it is a no-op.
func (p *Pool) Release(e Engine) {
	if e == nil {
		return
	}
	select {
	case <-p.closed:
	case p.engines <- e:
	}
}

// Close releases all engines. Engines still acquired are closed as well;
// callers must not use them afterwards.
func (p *Pool) Close() error {
	var errs []error
	p.once.Do(func() {
		close(p.closed)
		for _, e := range p.all {
			if err := e.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
