package testutil

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FakeS3 emulates the multipart behavior of S3 closely enough to exercise the
// whole upload pipeline: UploadPart acknowledges with the MD5 of the received
// bytes, CompleteMultipartUpload computes the composite ETag over the part
// manifest, and HeadObject reports it afterwards.
//
// UploadPartHook, when set, can override the acknowledgment or fail the call
// per (partNumber, attempt) to drive retry scenarios. TamperedETag, when
// non-empty, is served by HeadObject instead of the real composite digest.
type FakeS3 struct {
	mu sync.Mutex

	UploadID     string
	Completed    bool
	Aborted      bool
	ObjectETag   string
	TamperedETag string

	UploadPartHook func(partNumber int32, attempt int) (etagOverride string, err error)

	digests  map[int32][]byte
	sizes    map[int32]int64
	attempts map[int32]int
}

// NewFakeS3 creates a FakeS3 with a fixed upload ID.
func NewFakeS3() *FakeS3 {
	return &FakeS3{
		UploadID: "fake-upload-id",
		digests:  make(map[int32][]byte),
		sizes:    make(map[int32]int64),
		attempts: make(map[int32]int),
	}
}

// Attempts returns how many UploadPart calls were made for partNumber.
func (f *FakeS3) Attempts(partNumber int32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[partNumber]
}

// PartSize returns the byte length last uploaded for partNumber.
func (f *FakeS3) PartSize(partNumber int32) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sizes[partNumber]
}

// PartCount returns the number of distinct parts uploaded.
func (f *FakeS3) PartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.digests)
}

// Client returns a MockS3Client backed by this fake.
func (f *FakeS3) Client() *MockS3Client {
	return &MockS3Client{
		CreateMultipartUploadFunc: func(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{
				UploadId: aws.String(f.UploadID),
			}, nil
		},
		UploadPartFunc: func(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			body, err := io.ReadAll(in.Body)
			if err != nil {
				return nil, err
			}
			sum := md5.Sum(body)
			etag := hex.EncodeToString(sum[:])
			pn := aws.ToInt32(in.PartNumber)

			f.mu.Lock()
			f.attempts[pn]++
			attempt := f.attempts[pn]
			f.mu.Unlock()

			if f.UploadPartHook != nil {
				override, hookErr := f.UploadPartHook(pn, attempt)
				if hookErr != nil {
					return nil, hookErr
				}
				if override != "" {
					etag = override
				}
			}

			f.mu.Lock()
			f.digests[pn] = sum[:]
			f.sizes[pn] = int64(len(body))
			f.mu.Unlock()

			return &s3.UploadPartOutput{
				ETag: aws.String(`"` + etag + `"`),
			}, nil
		},
		CompleteMultipartUploadFunc: func(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			f.mu.Lock()
			defer f.mu.Unlock()

			sum := md5.New()
			for _, p := range in.MultipartUpload.Parts {
				digest, ok := f.digests[aws.ToInt32(p.PartNumber)]
				if !ok {
					return nil, fmt.Errorf("part %d not uploaded", aws.ToInt32(p.PartNumber))
				}
				sum.Write(digest)
			}
			f.ObjectETag = fmt.Sprintf("%s-%d", hex.EncodeToString(sum.Sum(nil)), len(in.MultipartUpload.Parts))
			f.Completed = true

			return &s3.CompleteMultipartUploadOutput{
				ETag: aws.String(`"` + f.ObjectETag + `"`),
			}, nil
		},
		AbortMultipartUploadFunc: func(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			f.mu.Lock()
			f.Aborted = true
			f.mu.Unlock()
			return &s3.AbortMultipartUploadOutput{}, nil
		},
		HeadObjectFunc: func(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			etag := f.ObjectETag
			if f.TamperedETag != "" {
				etag = f.TamperedETag
			}
			return &s3.HeadObjectOutput{
				ETag: aws.String(`"` + etag + `"`),
			}, nil
		},
	}
}
