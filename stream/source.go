// Package stream holds the primitives used to produce response bodies
// asynchronously: lazy chunk sources, a bounded single-producer pipeline,
// a write-once deferred value and byte transforms.
package stream

import (
	"context"
	"errors"
	"io"
)

// Chunk is one unit of body data. A chunk handed to a consumer is never
// empty and must not be modified after it has been pushed or returned.
type Chunk []byte

// Source is a lazy, single-pass sequence of chunks. Next returns io.EOF once
// the sequence is exhausted; any other error terminates the sequence early.
type Source interface {
	Next(ctx context.Context) (Chunk, error)
}

type emptySource struct{}

func (emptySource) Next(context.Context) (Chunk, error) {
	return nil, io.EOF
}

// Empty returns a source that ends immediately.
func Empty() Source {
	return emptySource{}
}

type singleSource struct {
	chunk Chunk
	done  bool
}

func (s *singleSource) Next(context.Context) (Chunk, error) {
	if s.done || len(s.chunk) == 0 {
		return nil, io.EOF
	}
	s.done = true
	return s.chunk, nil
}

// Single returns a source yielding b as one chunk. An empty b yields nothing.
func Single(b []byte) Source {
	return &singleSource{chunk: b}
}

type readerSource struct {
	r    io.Reader
	size int
	err  error
}

// FromReader turns r into a source, reading at most size bytes per chunk.
// Each chunk is a freshly allocated buffer so callers may keep it.
func FromReader(r io.Reader, size int) Source {
	if size <= 0 {
		size = 32 * 1024
	}
	return &readerSource{r: r, size: size}
}

func (s *readerSource) Next(ctx context.Context) (Chunk, error) {
	for s.err == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf := make([]byte, s.size)
		n, err := s.r.Read(buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			return buf[:n], nil
		}
	}
	return nil, s.err
}

// ReadAll drains src and returns the concatenated bytes.
func ReadAll(ctx context.Context, src Source) ([]byte, error) {
	var out []byte
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
	}
}

// Collect drains src and returns every chunk as it was produced.
func Collect(ctx context.Context, src Source) ([]Chunk, error) {
	var chunks []Chunk
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}
