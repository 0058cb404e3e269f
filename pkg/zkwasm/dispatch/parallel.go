package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/bridge"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
)

type job struct {
	ctx   context.Context
	index int
	shard Shard
	done  chan<- result
}

type result struct {
	index int
	err   error
}

// Parallel runs shards on a fixed set of worker goroutines.
type Parallel struct {
	size   int
	logger logging.Logger

	// queue admits one batch at a time, in arrival order.
	queue *semaphore.Weighted

	once    sync.Once
	started atomic.Bool
	jobs    chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewParallel returns a pool of size workers. No goroutine is started until
// the first Dispatch.
func NewParallel(size int, logger logging.Logger) *Parallel {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Parallel{
		size:   size,
		logger: logger,
		queue:  semaphore.NewWeighted(1),
	}
}

func (p *Parallel) Size() int { return p.size }

func (p *Parallel) Mode() Mode { return ModeParallel }

// Started reports whether the workers have been spawned.
func (p *Parallel) Started() bool { return p.started.Load() }

func (p *Parallel) start() {
	p.jobs = make(chan job)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.started.Store(true)
	p.logger.Debug(context.Background(), "worker pool started", "workers", p.size)
}

func (p *Parallel) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		err := bridge.Guard(j.ctx, "shard", func() error { return j.shard(j.ctx) })
		j.done <- result{index: j.index, err: err}
	}
}

func (p *Parallel) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Parallel) Dispatch(ctx context.Context, shards []Shard) error {
	if p.isClosed() {
		return ErrPoolClosed
	}
	if len(shards) == 0 {
		return nil
	}
	if err := p.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	if p.isClosed() {
		p.queue.Release(1)
		return ErrPoolClosed
	}
	p.once.Do(p.start)

	// Buffered so workers never block on a caller that stopped waiting.
	done := make(chan result, len(shards))
	var (
		next, pending int
		firstErr      error
	)
	for {
		canSubmit := next < len(shards) && firstErr == nil
		if !canSubmit && pending == 0 {
			break
		}
		var (
			submit chan<- job
			j      job
		)
		if canSubmit {
			submit = p.jobs
			j = job{ctx: ctx, index: next, shard: shards[next], done: done}
		}
		select {
		case submit <- j:
			next++
			pending++
		case r := <-done:
			pending--
			if r.err != nil && firstErr == nil {
				firstErr = r.err
			}
		case <-ctx.Done():
			// Shards already handed to workers keep running; the next batch
			// is admitted once they finish.
			go p.drain(done, pending)
			return ctx.Err()
		}
	}
	p.queue.Release(1)
	return firstErr
}

func (p *Parallel) drain(done <-chan result, pending int) {
	for ; pending > 0; pending-- {
		<-done
	}
	p.queue.Release(1)
}

// Close waits for the running batch, stops the workers and rejects further
// dispatches. It is safe to call more than once.
func (p *Parallel) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.queue.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer p.queue.Release(1)
	if p.started.Load() {
		close(p.jobs)
		p.wg.Wait()
		p.logger.Debug(context.Background(), "worker pool stopped", "workers", p.size)
	}
	return nil
}
