package relations

import (
	"bytes"
	"encoding/gob"
)

// GobArena adapts a ByteArena to the typed Arena[T] interface by
// gob-encoding each item before it is written and decoding it back out on
// Get. Use it in place of ObjectArena[T] when the members arena needs to
// live on disk rather than in the Go heap.
type GobArena[T any] struct {
	backing *ByteArena
}

// NewGobArena wraps an existing ByteArena (see NewByteArena) for typed use.
func NewGobArena[T any](backing *ByteArena) *GobArena[T] {
	return &GobArena[T]{backing: backing}
}

func (g *GobArena[T]) Add(item T) Offset {
	var buf bytes.Buffer
	// Encoding &item keeps the dynamic type when T is an interface, so Get
	// can decode it back into a T.
	if err := gob.NewEncoder(&buf).Encode(&item); err != nil {
		panic(invariantf("gob-encode arena item: %v", err))
	}
	return g.backing.Add(buf.Bytes())
}

func (g *GobArena[T]) Commit() Offset { return g.backing.Commit() }

func (g *GobArena[T]) Rollback() { g.backing.Rollback() }

func (g *GobArena[T]) Get(off Offset) *T {
	data := g.backing.Get(off)
	var v T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		panic(invariantf("gob-decode arena item: %v", err))
	}
	return &v
}

func (g *GobArena[T]) SetRemoved(off Offset) { g.backing.SetRemoved(off) }

func (g *GobArena[T]) PurgeRemoved(listener MoveListener) { g.backing.PurgeRemoved(listener) }

func (g *GobArena[T]) Len() int { return g.backing.Len() }

func (g *GobArena[T]) Bytes() int { return g.backing.Bytes() }

var _ Arena[int] = (*GobArena[int])(nil)
