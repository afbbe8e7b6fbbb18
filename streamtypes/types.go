// Package streamtypes provides shared type definitions for the streaming
// upload module.
package streamtypes

import (
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
)

// Default tuning values, matching the CLI defaults.
const (
	// DefaultChunkSize is the size of each uploaded part (8 MiB).
	DefaultChunkSize = 8 * 1024 * 1024

	// MinChunkSize is the smallest part size S3 accepts for non-final parts.
	MinChunkSize = 5 * 1024 * 1024

	// DefaultRetryLimit is how many upload attempts each part gets.
	DefaultRetryLimit = 5

	// DefaultRetryWait is the pause between attempts of the same part.
	DefaultRetryWait = 5 * time.Second
)

// PartState tracks a part through the upload state machine.
type PartState int

// Part states. A part is immutable once it reaches PartVerified; retries only
// bump its attempt counter, never its digest.
const (
	PartPending PartState = iota
	PartUploading
	PartVerifying
	PartVerified
	PartFailed
)

// String returns the state name.
func (s PartState) String() string {
	switch s {
	case PartPending:
		return "pending"
	case PartUploading:
		return "uploading"
	case PartVerifying:
		return "verifying"
	case PartVerified:
		return "verified"
	case PartFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionState tracks the lifecycle of one multipart upload session.
type SessionState int

// Session states.
const (
	SessionOpen SessionState = iota
	SessionCompleting
	SessionCompleted
	SessionAborted
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "open"
	case SessionCompleting:
		return "completing"
	case SessionCompleted:
		return "completed"
	case SessionAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Part is one verified chunk of the stream. Part numbers are 1-based and
// assigned in read order.
type Part struct {
	// Number is the 1-based part number
	Number int32

	// Size is the part length in bytes
	Size int64

	// Digest is the binary MD5 of the part's bytes
	Digest [16]byte

	// ETag is the storage-returned acknowledgment token (without quotes)
	ETag string

	// State is the part's position in the upload state machine
	State PartState

	// Attempts is how many uploads this part needed to verify
	Attempts int
}

// VerificationStatus is the outcome of the whole-object reconciliation.
type VerificationStatus int

// Verification outcomes.
const (
	// StatusVerified means the storage-reported composite digest matched the
	// one recomputed from the part ledger.
	StatusVerified VerificationStatus = iota + 1

	// StatusIntegrityMismatch means the digests differed. The object still
	// exists in storage; it is never deleted or re-uploaded automatically.
	StatusIntegrityMismatch
)

// String returns the status name.
func (s VerificationStatus) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusIntegrityMismatch:
		return "integrity-mismatch"
	default:
		return "unknown"
	}
}

// UploadResult is the single terminal result of a streaming upload.
type UploadResult struct {
	// Bucket and Key identify the stored object
	Bucket string
	Key    string

	// Bytes is the total number of bytes read from the stream and stored
	Bytes int64

	// Parts is the number of parts the stream was split into
	Parts int

	// ETag is the storage-reported digest of the finalized object
	ETag string

	// CompositeETag is the digest recomputed locally from the part ledger
	CompositeETag string

	// StreamMD5 is the hex MD5 over the entire input stream
	StreamMD5 string

	// Status is the outcome of the whole-object reconciliation
	Status VerificationStatus

	// Duration is how long the upload took
	Duration time.Duration
}

// StreamConfig holds configuration for one streaming upload.
type StreamConfig struct {
	// ChunkSize is the size of each part in bytes; the final part may be
	// shorter
	ChunkSize int64

	// RetryLimit is the total number of upload attempts each part gets
	RetryLimit int

	// RetryWait is the pause between attempts of the same part
	RetryWait time.Duration

	// Concurrency bounds the number of parts uploading at once; 1 means the
	// strictly sequential read-upload-verify loop
	Concurrency int

	// ContentType is attached to the created object; sniffed from the first
	// chunk when empty
	ContentType string

	// Logger receives per-part progress and abort diagnostics
	Logger zerolog.Logger
}

// ClientConfig holds configuration for the storage client.
type ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
	Timeout         time.Duration
	ForcePathStyle  bool
	CustomAWSConfig *aws.Config
	HTTPClient      *http.Client
}

// Option is a functional option for configuring the storage client.
type (
	Option func(*ClientConfig)
	// StreamOption is a functional option for configuring one streaming upload.
	StreamOption func(*StreamConfig)
)
