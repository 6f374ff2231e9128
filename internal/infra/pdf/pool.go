package pdf

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/bryanwahyu/kinetic-intake/internal/domain/delivery"
)

// Pool bounds how many renders run against the browser at once. A caller
// waiting for a free slot gives up when its context ends.
type Pool struct {
	pool  *ants.Pool
	slots chan struct{}
	next  delivery.Renderer
}

type result struct {
	data []byte
	err  error
}

// NewPool wraps next with a pool of size workers (minimum 1).
func NewPool(size int, next delivery.Renderer) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("render pool: %w", err)
	}
	return &Pool{pool: p, slots: make(chan struct{}, size), next: next}, nil
}

// Render implements delivery.Renderer.
func (p *Pool) Render(ctx context.Context, html string) ([]byte, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done := make(chan result, 1)
	err := p.pool.Submit(func() {
		defer func() { <-p.slots }()
		if err := ctx.Err(); err != nil {
			done <- result{err: err}
			return
		}
		data, err := p.next.Render(ctx, html)
		done <- result{data: data, err: err}
	})
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("submit render: %w", err)
	}

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Running is the number of renders in flight.
func (p *Pool) Running() int { return p.pool.Running() }

// Release stops the workers.
func (p *Pool) Release() { p.pool.Release() }
