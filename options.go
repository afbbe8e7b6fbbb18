package streamtos3

import (
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/jgru/stream-to-s3/streamtypes"
)

// WithRegion sets the AWS region for the client.
func WithRegion(region string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom endpoint URL, e.g. for MinIO or LocalStack.
func WithEndpoint(endpoint string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithStaticCredentials sets a fixed access key pair instead of the default
// AWS credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithForcePathStyle forces path-style addressing. Required for most
// S3-compatible services that do not support virtual-hosted buckets.
func WithForcePathStyle(force bool) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.ForcePathStyle = force
	}
}

// WithTimeout sets the HTTP client timeout for individual requests.
func WithTimeout(timeout time.Duration) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the SDK-level retry count for transport failures. This
// is independent of the per-part retry limit, which also covers integrity
// mismatches the SDK cannot see.
func WithMaxRetries(maxRetries int) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.HTTPClient = client
	}
}

// WithAWSConfig uses a pre-built AWS configuration, bypassing the default
// config loading entirely.
func WithAWSConfig(cfg aws.Config) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.CustomAWSConfig = &cfg
	}
}

// WithChunkSize sets the part size in bytes. Must be at least 5 MiB, the S3
// minimum for non-final parts. Defaults to 8 MiB.
func WithChunkSize(size int64) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.ChunkSize = size
	}
}

// WithRetryLimit sets the total number of upload attempts each part gets
// before the upload fails. Defaults to 5.
func WithRetryLimit(limit int) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.RetryLimit = limit
	}
}

// WithRetryWait sets the pause between attempts of the same part.
// Defaults to 5 seconds.
func WithRetryWait(wait time.Duration) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.RetryWait = wait
	}
}

// WithConcurrency bounds how many parts upload at once. The stream is always
// read sequentially; only the uploads overlap. Defaults to 1, the strictly
// sequential read-upload-verify loop.
func WithConcurrency(n int) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.Concurrency = n
	}
}

// WithContentType sets the content type of the created object. When empty,
// the type is sniffed from the first chunk.
func WithContentType(contentType string) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.ContentType = contentType
	}
}

// WithLogger sets the logger receiving per-part progress and abort
// diagnostics. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.Logger = log
	}
}
