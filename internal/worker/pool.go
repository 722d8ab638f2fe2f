// Package worker runs batch tile rendering on a fixed-size pool.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// RenderFunc renders one tile to encoded bytes.
type RenderFunc func(ctx context.Context, t tile.Tile) ([]byte, error)

// Result is the outcome of rendering one tile.
type Result struct {
	Tile    tile.Tile
	Data    []byte
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each tile completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the pool.
type Config struct {
	Workers    int
	Render     RenderFunc
	OnProgress ProgressFunc
}

// Pool renders tiles in parallel. Rendering is CPU-bound; the worker count
// is usually the core count.
type Pool struct {
	workers    int
	render     RenderFunc
	onProgress ProgressFunc
}

// New creates a pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		render:     cfg.Render,
		onProgress: cfg.OnProgress,
	}
}

// Run renders all tiles and hands each result to sink from a single
// goroutine, in completion order. It blocks until every tile is done or the
// context is cancelled; cancelled tiles carry ctx.Err.
func (p *Pool) Run(ctx context.Context, tiles []tile.Tile, sink func(Result)) {
	if len(tiles) == 0 {
		return
	}

	taskCh := make(chan tile.Tile, len(tiles))
	resultCh := make(chan Result, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, t := range tiles {
			select {
			case taskCh <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		completed, failed := 0, 0
		for result := range resultCh {
			completed++
			if result.Err != nil {
				failed++
			}
			if sink != nil {
				sink(result)
			}
			if p.onProgress != nil {
				p.onProgress(completed, len(tiles), failed)
			}
		}
	}()

	wg.Wait()
	close(resultCh)
	<-done
}

func (p *Pool) worker(ctx context.Context, tasks <-chan tile.Tile, results chan<- Result) {
	for t := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{Tile: t, Err: ctx.Err()}
			continue
		default:
		}

		start := time.Now()
		data, err := p.render(ctx, t)
		results <- Result{
			Tile:    t,
			Data:    data,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
