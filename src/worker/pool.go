package worker

import (
	"context"
	"log"
	"sync"

	"copytoask/src/selection"
)

// CaptureFunc reads the current selection.
type CaptureFunc func(ctx context.Context) selection.Captured

// ResultCallback is invoked on capture completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(c selection.Captured, err error)

// Pool runs capture jobs with a 1-slot input queue (strict back-pressure).
// Captures drive the shared clipboard, so the default size is one worker.
type Pool struct {
	jobs    chan job
	wg      sync.WaitGroup
	capture CaptureFunc
}

type job struct {
	ctx context.Context
	cb  ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0. Queue is 1 slot.
func New(size int, capture CaptureFunc) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1), capture: capture}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.run(j)
			}
		}()
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in capture worker: %v", r)
			j.cb(selection.Captured{Provenance: selection.ProvenanceNone, Anchor: selection.PointerAnchor()}, context.Canceled)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		log.Printf("Worker: job expired before start: %v", err)
		j.cb(selection.Captured{Provenance: selection.ProvenanceNone, Anchor: selection.PointerAnchor()}, err)
		return
	}
	c := p.capture(j.ctx)
	log.Printf("Worker: capture completed, provenance=%s chars=%d", c.Provenance, len(c.Text))
	j.cb(c, j.ctx.Err())
}

// Submit enqueues a capture job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
