package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrClosed = errors.New("stream: pipeline closed")

// DefaultCapacity is the number of chunks a pipeline buffers before Push blocks.
const DefaultCapacity = 1

// Pipeline is a bounded, ordered queue connecting one producer to one
// consumer. Push blocks while the buffer is full and Next blocks while it is
// empty, which throttles the producer to the pace of the consumer.
type Pipeline struct {
	chunks chan Chunk

	mu     sync.Mutex
	closed bool
	err    error
}

func NewPipeline(capacity int) *Pipeline {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Pipeline{chunks: make(chan Chunk, capacity)}
}

// Push appends chunk to the pipeline. Empty chunks are dropped. Push must
// only be called by the producer and returns ErrClosed after Close.
func (p *Pipeline) Push(ctx context.Context, chunk Chunk) error {
	if len(chunk) == 0 {
		return nil
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case p.chunks <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the stream. Chunks already pushed are still
// delivered. Calling Close more than once has no further effect.
func (p *Pipeline) Close() {
	p.CloseWithError(nil)
}

// CloseWithError closes the pipeline and makes the consumer observe err
// instead of io.EOF once the buffered chunks are drained.
func (p *Pipeline) CloseWithError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.err = err
	close(p.chunks)
}

// Next returns the next chunk in push order. It returns io.EOF only after
// the pipeline has been closed and fully drained.
func (p *Pipeline) Next(ctx context.Context) (Chunk, error) {
	select {
	case chunk, ok := <-p.chunks:
		if ok {
			return chunk, nil
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return nil, io.EOF
}
