package streamtos3

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/jgru/stream-to-s3/internal/chunker"
	"github.com/jgru/stream-to-s3/internal/partup"
	"github.com/jgru/stream-to-s3/internal/session"
	"github.com/jgru/stream-to-s3/internal/validation"
	"github.com/jgru/stream-to-s3/internal/verify"
	"github.com/jgru/stream-to-s3/streamtypes"
)

// Stream uploads everything readable from r to bucket/key as a chunked
// multipart upload and verifies the stored object before returning.
//
// The reader is consumed exactly once, front to back; it is never seeked or
// re-read, so pipes and standard input work. Each chunk is uploaded with its
// MD5 as the Content-MD5 header, the acknowledgment is compared against the
// same digest, and mismatching or failed parts are re-uploaded from the
// cached bytes up to the configured retry limit. After completion the
// storage-reported ETag of the finalized object is reconciled against the
// composite digest recomputed from the part ledger.
//
// On any fatal failure the multipart session is aborted best-effort and an
// error carrying an errors.Kind is returned. A whole-object integrity
// mismatch is the one failure that still returns a result: the object exists
// in storage and the result describes it, with Status set to
// StatusIntegrityMismatch alongside the error.
func (c *Client) Stream(
	ctx context.Context,
	bucket, key string,
	r io.Reader,
	opts ...streamtypes.StreamOption,
) (*streamtypes.UploadResult, error) {
	start := time.Now()

	cfg := &streamtypes.StreamConfig{
		ChunkSize:   streamtypes.DefaultChunkSize,
		RetryLimit:  streamtypes.DefaultRetryLimit,
		RetryWait:   streamtypes.DefaultRetryWait,
		Concurrency: 1,
		Logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if err := validation.ValidateStreamConfig(cfg); err != nil {
		return nil, err
	}

	log := cfg.Logger.With().Str("bucket", bucket).Str("key", key).Logger()

	// The tee accumulates the whole-stream MD5 as a side effect of the
	// sequential chunk reads.
	streamSum := md5.New()
	chunks := chunker.New(io.TeeReader(r, streamSum), cfg.ChunkSize)

	// The first chunk is read before the session opens: a stream that fails
	// immediately should not leave an orphaned multipart upload behind, and
	// the chunk doubles as the content-type sniffing sample.
	first, err := chunks.Next()
	if err != nil {
		return nil, err
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(first).String()
	}

	sess := session.New(c.s3Client, bucket, key, log)
	if err := sess.Start(ctx, contentType); err != nil {
		return nil, err
	}

	p := &pipeline{
		sess:   sess,
		up:     partup.New(c.s3Client, cfg.RetryLimit, cfg.RetryWait, log),
		chunks: chunks,
		bucket: bucket,
		key:    key,
	}

	var total int64
	if cfg.Concurrency <= 1 {
		total, err = p.runSequential(ctx, first)
	} else {
		total, err = p.runConcurrent(ctx, first, cfg.Concurrency)
	}
	if err != nil {
		sess.Abort(context.WithoutCancel(ctx))
		return nil, err
	}

	objectETag, err := sess.Complete(ctx)
	if err != nil {
		sess.Abort(context.WithoutCancel(ctx))
		return nil, err
	}

	result := &streamtypes.UploadResult{
		Bucket:        bucket,
		Key:           key,
		Bytes:         total,
		Parts:         len(sess.Parts()),
		ETag:          objectETag,
		CompositeETag: sess.CompositeETag(),
		StreamMD5:     hex.EncodeToString(streamSum.Sum(nil)),
		Status:        streamtypes.StatusVerified,
	}

	remoteETag, err := verify.New(c.s3Client).Verify(ctx, bucket, key, result.CompositeETag)
	if remoteETag != "" {
		result.ETag = remoteETag
	}
	result.Duration = time.Since(start)

	if err != nil {
		// The object stays in storage for inspection. Deleting or blindly
		// re-uploading could leave two inconsistent copies.
		result.Status = streamtypes.StatusIntegrityMismatch
		log.Error().
			Str("expected", result.CompositeETag).
			Str("observed", remoteETag).
			Msg("finalized object digest mismatch")
		return result, err
	}

	log.Info().
		Int64("bytes", result.Bytes).
		Int("parts", result.Parts).
		Str("etag", result.ETag).
		Str("md5", result.StreamMD5).
		Dur("elapsed", result.Duration).
		Msg("upload verified")
	return result, nil
}

// pipeline drives chunks from the reader through part upload into the session
// ledger. The reader side is always sequential; only uploads overlap.
type pipeline struct {
	sess   *session.Manager
	up     *partup.Uploader
	chunks *chunker.Chunker
	bucket string
	key    string
}

// runSequential is the strict read-upload-verify loop: one part in flight,
// at most one chunk buffered.
func (p *pipeline) runSequential(ctx context.Context, first []byte) (int64, error) {
	var total int64
	chunk := first

	for partNumber := int32(1); ; partNumber++ {
		part, err := p.up.Upload(ctx, p.bucket, p.key, p.sess.UploadID(), partNumber, chunk)
		p.chunks.Recycle(chunk)
		if err != nil {
			return total, err
		}
		p.sess.Record(*part)
		total += part.Size

		chunk, err = p.chunks.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// runConcurrent uploads up to workers parts at once. Part numbers are assigned
// in read order before handing the chunk to a worker, so the completion
// manifest is identical to the sequential one. The first failure cancels the
// context; remaining workers drain and the error is returned after all of
// them finish.
func (p *pipeline) runConcurrent(ctx context.Context, first []byte, workers int) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var total int64
	var firstErr error

	launch := func(partNumber int32, chunk []byte) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			part, err := p.up.Upload(ctx, p.bucket, p.key, p.sess.UploadID(), partNumber, chunk)
			p.chunks.Recycle(chunk)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			p.sess.Record(*part)

			mu.Lock()
			total += part.Size
			mu.Unlock()
		}()
	}

	var readErr error
	chunk := first

loop:
	for partNumber := int32(1); ; partNumber++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			p.chunks.Recycle(chunk)
			break loop
		}
		launch(partNumber, chunk)

		var err error
		chunk, err = p.chunks.Next()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			readErr = err
			cancel()
			break loop
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if readErr != nil {
		return total, readErr
	}
	if firstErr != nil {
		return total, firstErr
	}
	// The loop can also stop on parent cancellation with no worker error.
	return total, ctx.Err()
}
