// Package chunker segments an input stream into fixed-size chunks for
// multipart upload.
//
// The source is lazy, finite and non-restartable: chunks are produced in read
// order and a read failure is terminal, since the bytes of a piped stream
// cannot be reproduced.
package chunker

import (
	"io"

	"github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/internal/pool"
)

// Chunker produces successive chunks of up to Size bytes from a reader.
// It is not safe for concurrent use; the upload pipeline reads sequentially
// even when parts upload concurrently.
type Chunker struct {
	r       io.Reader
	size    int64
	buffers *pool.ChunkPool

	emitted bool
	done    bool
}

// New creates a Chunker producing chunks of size bytes from r.
func New(r io.Reader, size int64) *Chunker {
	return &Chunker{
		r:       r,
		size:    size,
		buffers: pool.NewChunkPool(size),
	}
}

// Next returns the next chunk of the stream, or io.EOF once the stream is
// exhausted. Every chunk is exactly the configured size except the last, which
// may be shorter. An empty stream yields a single empty chunk before io.EOF,
// so even zero input produces one uploadable part.
//
// The returned slice is owned by the caller until passed to Recycle; it stays
// valid across retries of the same part.
func (c *Chunker) Next() ([]byte, error) {
	if c.done {
		return nil, io.EOF
	}

	buf := c.buffers.Get()
	n, err := io.ReadFull(c.r, buf)

	switch {
	case err == nil:
		c.emitted = true
		return buf, nil
	case err == io.ErrUnexpectedEOF:
		// Short final chunk. The stream is exhausted.
		c.done = true
		c.emitted = true
		return buf[:n], nil
	case err == io.EOF:
		c.done = true
		if !c.emitted {
			// Empty stream: emit one zero-length terminal chunk.
			c.emitted = true
			return buf[:0], nil
		}
		c.buffers.Put(buf)
		return nil, io.EOF
	default:
		c.done = true
		c.buffers.Put(buf)
		return nil, errors.New(errors.KindRead, "read", err)
	}
}

// Recycle returns a chunk buffer for reuse. Call it only after the part built
// from the chunk has reached a terminal state.
func (c *Chunker) Recycle(buf []byte) {
	c.buffers.Put(buf[:cap(buf)])
}
