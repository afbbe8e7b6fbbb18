// Package pool provides chunk buffer reuse.
//
// A streaming upload holds every in-flight chunk in memory until its part
// reaches a terminal state. Recycling those buffers keeps allocations bounded
// by the concurrency level instead of the stream length.
package pool

import (
	"sync"
)

// ChunkPool manages reusable chunk buffers of a single fixed capacity.
type ChunkPool struct {
	size int64
	p    *sync.Pool
}

// NewChunkPool creates a pool of buffers with capacity size.
func NewChunkPool(size int64) *ChunkPool {
	return &ChunkPool{
		size: size,
		p: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Size returns the capacity of the buffers managed by this pool.
func (cp *ChunkPool) Size() int64 {
	return cp.size
}

// Get returns a buffer with length equal to the pool's chunk size.
// The caller is responsible for calling Put once the buffer is no longer used.
func (cp *ChunkPool) Get() []byte {
	bufPtr := cp.p.Get().(*[]byte)
	return (*bufPtr)[:cp.size]
}

// Put returns a buffer to the pool. Buffers of a different capacity are
// dropped rather than pooled.
func (cp *ChunkPool) Put(buf []byte) {
	if int64(cap(buf)) != cp.size {
		return
	}
	buf = buf[:cp.size]
	cp.p.Put(&buf)
}
