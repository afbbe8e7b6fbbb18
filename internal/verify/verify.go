// Package verify implements the final whole-object integrity check.
package verify

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/internal/s3api"
)

// Verifier reconciles the finalized object against the part ledger.
type Verifier struct {
	s3Client s3api.S3API
}

// New creates a Verifier.
func New(s3Client s3api.S3API) *Verifier {
	return &Verifier{s3Client: s3Client}
}

// Verify fetches the storage-reported ETag of bucket/key and compares it
// byte-for-byte against expectedETag, the composite digest recomputed from
// the recorded part digests.
//
// A mismatch is returned as KindObjectIntegrity but is deliberately not
// retried and the object is not deleted: it already exists in storage, and a
// blind re-upload could leave two inconsistent copies. The check is
// idempotent; re-running it against unchanged storage yields the same
// outcome. The observed ETag is returned in both cases so the caller can
// report it.
func (v *Verifier) Verify(ctx context.Context, bucket, key, expectedETag string) (string, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	output, err := v.s3Client.HeadObject(ctx, input)
	if err != nil {
		return "", errors.New(errors.KindObjectIntegrity, "headObject", err).
			WithBucket(bucket).WithKey(key).
			WithMessage("finalized object could not be inspected")
	}

	remoteETag := strings.Trim(aws.ToString(output.ETag), `"`)
	if remoteETag != expectedETag {
		return remoteETag, errors.New(errors.KindObjectIntegrity, "verify", nil).
			WithBucket(bucket).WithKey(key).
			WithDigests(expectedETag, remoteETag)
	}

	return remoteETag, nil
}
