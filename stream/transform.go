package stream

import "context"

// Transform maps one input chunk to one output chunk. It must not keep or
// modify its input.
type Transform func(in Chunk) Chunk

// Uppercase maps ASCII lowercase letters to uppercase and copies every other
// byte unchanged.
func Uppercase(in Chunk) Chunk {
	out := make(Chunk, len(in))
	for i, c := range in {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

type mapSource struct {
	src Source
	fn  Transform
}

// Map returns a source applying fn to every chunk of src as it is pulled.
// Chunk boundaries and order are preserved.
func Map(src Source, fn Transform) Source {
	return &mapSource{src: src, fn: fn}
}

func (m *mapSource) Next(ctx context.Context) (Chunk, error) {
	chunk, err := m.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	return m.fn(chunk), nil
}
