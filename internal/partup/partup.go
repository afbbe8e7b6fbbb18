// Package partup implements the per-part upload state machine: hash, upload,
// verify the acknowledgment, retry on mismatch or transient failure.
package partup

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/internal/s3api"
	"github.com/jgru/stream-to-s3/streamtypes"
)

// Uploader uploads single parts under a multipart session and verifies each
// acknowledgment against the locally computed digest.
type Uploader struct {
	s3Client   s3api.S3API
	retryLimit int
	retryWait  time.Duration
	log        zerolog.Logger
}

// New creates a part uploader. retryLimit is the total number of attempts each
// part gets; retryWait is the pause between attempts.
func New(s3Client s3api.S3API, retryLimit int, retryWait time.Duration, log zerolog.Logger) *Uploader {
	return &Uploader{
		s3Client:   s3Client,
		retryLimit: retryLimit,
		retryWait:  retryWait,
		log:        log,
	}
}

// Upload uploads one chunk as part partNumber of the given multipart session.
//
// The chunk's MD5 is sent as the Content-MD5 header so the server rejects
// bytes corrupted in transit, and the returned ETag is compared against the
// same digest afterwards. A mismatching acknowledgment or a failed call is
// retried with the configured wait, re-uploading the identical bytes. The
// digest is computed once; it is a pure function of the chunk.
//
// On success the returned Part is in state PartVerified. On failure the part
// is terminal in state PartFailed and the error carries KindRetryExhausted
// (or KindRead-level context cancellation passed through).
func (u *Uploader) Upload(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	chunk []byte,
) (*streamtypes.Part, error) {
	digest := md5.Sum(chunk)
	wantETag := hex.EncodeToString(digest[:])
	contentMD5 := base64.StdEncoding.EncodeToString(digest[:])

	part := &streamtypes.Part{
		Number: partNumber,
		Size:   int64(len(chunk)),
		Digest: digest,
		State:  streamtypes.PartPending,
	}

	var lastErr error

	attempt := func() error {
		part.Attempts++
		part.State = streamtypes.PartUploading

		etag, err := u.uploadOnce(ctx, bucket, key, uploadID, partNumber, chunk, contentMD5)
		if err != nil {
			lastErr = errors.New(errors.KindPartUpload, "uploadPart", err).
				WithBucket(bucket).WithKey(key).
				WithPart(partNumber, part.Attempts)
			u.log.Warn().
				Int32("part", partNumber).
				Int("attempt", part.Attempts).
				Err(err).
				Msg("part upload failed")
			return lastErr
		}

		part.State = streamtypes.PartVerifying
		if etag != wantETag {
			lastErr = errors.New(errors.KindPartIntegrity, "uploadPart", nil).
				WithBucket(bucket).WithKey(key).
				WithPart(partNumber, part.Attempts).
				WithDigests(wantETag, etag)
			u.log.Warn().
				Int32("part", partNumber).
				Int("attempt", part.Attempts).
				Str("expected", wantETag).
				Str("observed", etag).
				Msg("part acknowledgment mismatches digest")
			return lastErr
		}

		part.State = streamtypes.PartVerified
		part.ETag = etag
		u.log.Info().
			Int32("part", partNumber).
			Int64("bytes", part.Size).
			Str("md5", wantETag).
			Int("attempt", part.Attempts).
			Msg("part verified")
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(u.retryWait),
			uint64(u.retryLimit-1),
		),
		ctx,
	)

	if err := backoff.Retry(attempt, policy); err != nil {
		part.State = streamtypes.PartFailed
		if ctx.Err() != nil {
			return part, ctx.Err()
		}
		exhausted := errors.New(errors.KindRetryExhausted, "uploadPart", lastErr).
			WithBucket(bucket).WithKey(key).
			WithPart(partNumber, part.Attempts)
		var le *errors.Error
		if stderrors.As(lastErr, &le) {
			exhausted.Expected = le.Expected
			exhausted.Observed = le.Observed
		}
		return part, exhausted
	}

	return part, nil
}

// uploadOnce performs a single UploadPart call and returns the unquoted ETag.
func (u *Uploader) uploadOnce(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	chunk []byte,
	contentMD5 string,
) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(chunk),
		ContentLength: aws.Int64(int64(len(chunk))),
		ContentMD5:    aws.String(contentMD5),
	}

	output, err := u.s3Client.UploadPart(ctx, input)
	if err != nil {
		return "", err
	}

	return strings.Trim(aws.ToString(output.ETag), `"`), nil
}
