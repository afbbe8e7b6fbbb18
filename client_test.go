package streamtos3_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamtos3 "github.com/jgru/stream-to-s3"
	uperrors "github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/internal/testutil"
)

func TestBucketExists(t *testing.T) {
	tests := []struct {
		name       string
		headErr    error
		wantExists bool
		wantErr    bool
	}{
		{
			name:       "bucket present",
			headErr:    nil,
			wantExists: true,
		},
		{
			name:       "bucket missing",
			headErr:    &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"},
			wantExists: false,
		},
		{
			name:    "transport failure",
			headErr: stderrors.New("dial tcp: timeout"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := streamtos3.NewWithClient(&testutil.MockS3Client{
				HeadBucketFunc: func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
					if tt.headErr != nil {
						return nil, tt.headErr
					}
					return &s3.HeadBucketOutput{}, nil
				},
			})

			exists, err := client.BucketExists(context.Background(), "bkt")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, uperrors.KindSessionStart, uperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExists, exists)
		})
	}
}

func TestObjectExists(t *testing.T) {
	tests := []struct {
		name       string
		headErr    error
		wantExists bool
		wantErr    bool
	}{
		{
			name:       "object present",
			headErr:    nil,
			wantExists: true,
		},
		{
			name:       "object missing",
			headErr:    &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"},
			wantExists: false,
		},
		{
			name:       "no such key",
			headErr:    &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"},
			wantExists: false,
		},
		{
			name:    "access denied",
			headErr: &smithy.GenericAPIError{Code: "AccessDenied", Message: "forbidden"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := streamtos3.NewWithClient(&testutil.MockS3Client{
				HeadObjectFunc: func(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
					assert.Equal(t, "bkt", aws.ToString(in.Bucket))
					assert.Equal(t, "key", aws.ToString(in.Key))
					if tt.headErr != nil {
						return nil, tt.headErr
					}
					return &s3.HeadObjectOutput{}, nil
				},
			})

			exists, err := client.ObjectExists(context.Background(), "bkt", "key")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExists, exists)
		})
	}
}

func TestNewWithCustomConfig(t *testing.T) {
	cfg := aws.Config{Region: "eu-west-1"}
	client, err := streamtos3.New(streamtos3.WithAWSConfig(cfg))
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewRegionOverride(t *testing.T) {
	client, err := streamtos3.New(
		streamtos3.WithAWSConfig(aws.Config{Region: "eu-west-1"}),
		streamtos3.WithRegion("us-west-2"),
		streamtos3.WithEndpoint("http://localhost:4566"),
		streamtos3.WithForcePathStyle(true),
	)
	require.NoError(t, err)
	assert.NotNil(t, client)
}
