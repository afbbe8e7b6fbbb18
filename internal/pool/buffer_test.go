package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkPoolGetPut(t *testing.T) {
	p := NewChunkPool(1024)

	buf := p.Get()
	assert.Len(t, buf, 1024)
	assert.Equal(t, int64(1024), p.Size())

	// Shortened slices come back at full length after recycling.
	p.Put(buf[:10])
	again := p.Get()
	assert.Len(t, again, 1024)
}

func TestChunkPoolDropsForeignBuffers(t *testing.T) {
	p := NewChunkPool(64)

	// Must not panic or poison the pool.
	p.Put(make([]byte, 32))

	buf := p.Get()
	assert.Len(t, buf, 64)
	assert.Equal(t, 64, cap(buf))
}
