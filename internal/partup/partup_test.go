package partup

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uperrors "github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/internal/testutil"
	"github.com/jgru/stream-to-s3/streamtypes"
)

func newUploader(client *testutil.MockS3Client, retryLimit int) *Uploader {
	return New(client, retryLimit, time.Millisecond, zerolog.Nop())
}

// ackWith returns an UploadPart mock acknowledging with the given hex digest.
func ackWith(etag string) func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		return &s3.UploadPartOutput{ETag: aws.String(`"` + etag + `"`)}, nil
	}
}

func TestUploadVerifiedFirstAttempt(t *testing.T) {
	chunk := []byte("some chunk payload")
	digest := md5.Sum(chunk)
	wantETag := hex.EncodeToString(digest[:])

	var gotInput *s3.UploadPartInput
	client := &testutil.MockS3Client{
		UploadPartFunc: func(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			gotInput = in
			return &s3.UploadPartOutput{ETag: aws.String(`"` + wantETag + `"`)}, nil
		},
	}

	part, err := newUploader(client, 5).Upload(context.Background(), "bkt", "key", "uid", 1, chunk)
	require.NoError(t, err)

	assert.Equal(t, int32(1), part.Number)
	assert.Equal(t, int64(len(chunk)), part.Size)
	assert.Equal(t, digest, part.Digest)
	assert.Equal(t, wantETag, part.ETag)
	assert.Equal(t, streamtypes.PartVerified, part.State)
	assert.Equal(t, 1, part.Attempts)

	require.NotNil(t, gotInput)
	assert.Equal(t, "bkt", aws.ToString(gotInput.Bucket))
	assert.Equal(t, "key", aws.ToString(gotInput.Key))
	assert.Equal(t, "uid", aws.ToString(gotInput.UploadId))
	assert.Equal(t, int32(1), aws.ToInt32(gotInput.PartNumber))
	assert.Equal(t, int64(len(chunk)), aws.ToInt64(gotInput.ContentLength))
	assert.Equal(t, base64.StdEncoding.EncodeToString(digest[:]), aws.ToString(gotInput.ContentMD5))

	body, err := io.ReadAll(gotInput.Body)
	require.NoError(t, err)
	assert.Equal(t, chunk, body)
}

func TestUploadRecoversFromMismatches(t *testing.T) {
	chunk := []byte("payload that arrives corrupted twice")
	digest := md5.Sum(chunk)
	wantETag := hex.EncodeToString(digest[:])

	calls := 0
	client := &testutil.MockS3Client{
		UploadPartFunc: func(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			calls++
			if calls <= 2 {
				return &s3.UploadPartOutput{ETag: aws.String(`"deadbeefdeadbeefdeadbeefdeadbeef"`)}, nil
			}
			// The identical bytes must be re-sent on every attempt.
			body, err := io.ReadAll(in.Body)
			require.NoError(t, err)
			assert.Equal(t, chunk, body)
			return &s3.UploadPartOutput{ETag: aws.String(`"` + wantETag + `"`)}, nil
		},
	}

	part, err := newUploader(client, 5).Upload(context.Background(), "bkt", "key", "uid", 2, chunk)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, part.Attempts)
	assert.Equal(t, streamtypes.PartVerified, part.State)
	assert.Equal(t, wantETag, part.ETag)
}

func TestUploadRecoversFromTransientFailure(t *testing.T) {
	chunk := []byte("payload behind a flaky link")
	digest := md5.Sum(chunk)
	wantETag := hex.EncodeToString(digest[:])

	calls := 0
	client := &testutil.MockS3Client{
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			calls++
			if calls == 1 {
				return nil, stderrors.New("connection reset by peer")
			}
			return &s3.UploadPartOutput{ETag: aws.String(`"` + wantETag + `"`)}, nil
		},
	}

	part, err := newUploader(client, 5).Upload(context.Background(), "bkt", "key", "uid", 1, chunk)
	require.NoError(t, err)
	assert.Equal(t, 2, part.Attempts)
	assert.Equal(t, streamtypes.PartVerified, part.State)
}

func TestUploadExhaustsRetryLimit(t *testing.T) {
	chunk := []byte("never acknowledged correctly")
	digest := md5.Sum(chunk)
	wantETag := hex.EncodeToString(digest[:])

	calls := 0
	client := &testutil.MockS3Client{
		UploadPartFunc: func(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			calls++
			return &s3.UploadPartOutput{ETag: aws.String(`"0000000000000000000000000000ffff"`)}, nil
		},
	}

	part, err := newUploader(client, 3).Upload(context.Background(), "bkt", "key", "uid", 4, chunk)
	require.Error(t, err)

	// A retry limit of 3 means exactly 3 attempts, not 4.
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, part.Attempts)
	assert.Equal(t, streamtypes.PartFailed, part.State)

	assert.Equal(t, uperrors.KindRetryExhausted, uperrors.KindOf(err))
	assert.True(t, stderrors.Is(err, &uperrors.Error{Kind: uperrors.KindPartIntegrity}))

	var e *uperrors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, int32(4), e.PartNumber)
	assert.Equal(t, 3, e.Attempts)
	assert.Equal(t, wantETag, e.Expected)
	assert.Equal(t, "0000000000000000000000000000ffff", e.Observed)
}

func TestUploadSingleAttemptLimit(t *testing.T) {
	calls := 0
	client := &testutil.MockS3Client{
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			calls++
			return nil, stderrors.New("boom")
		},
	}

	part, err := newUploader(client, 1).Upload(context.Background(), "bkt", "key", "uid", 1, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, streamtypes.PartFailed, part.State)
	assert.Equal(t, uperrors.KindRetryExhausted, uperrors.KindOf(err))
}

func TestUploadStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := &testutil.MockS3Client{
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			cancel()
			return nil, stderrors.New("boom")
		},
	}

	part, err := New(client, 5, time.Minute, zerolog.Nop()).
		Upload(ctx, "bkt", "key", "uid", 1, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, streamtypes.PartFailed, part.State)
}

func TestUploadEmptyChunk(t *testing.T) {
	// Zero bytes still make a valid part; its digest is the MD5 of nothing.
	empty := md5.Sum(nil)
	client := &testutil.MockS3Client{
		UploadPartFunc: ackWith(hex.EncodeToString(empty[:])),
	}

	part, err := newUploader(client, 5).Upload(context.Background(), "bkt", "key", "uid", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), part.Size)
	assert.Equal(t, streamtypes.PartVerified, part.State)
}
