// Package errors provides error types for streaming multipart uploads.
// Every failure carries a Kind so callers can separate retryable part-level
// failures from fatal ones without inspecting error strings.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an upload failure.
type Kind int

// Failure kinds, ordered roughly by where they occur in the pipeline.
const (
	// KindRead indicates the input stream failed. Fatal: the bytes of an
	// unseekable stream cannot be re-read.
	KindRead Kind = iota + 1

	// KindPartUpload indicates a transient network or server failure while
	// uploading a single part. Retryable.
	KindPartUpload

	// KindPartIntegrity indicates the server acknowledged a part with an ETag
	// that does not match the locally computed digest. Retryable.
	KindPartIntegrity

	// KindRetryExhausted indicates a part failed more times than the configured
	// retry limit allows. Fatal.
	KindRetryExhausted

	// KindSessionStart indicates the multipart upload could not be created.
	// Fatal, never retried.
	KindSessionStart

	// KindSessionComplete indicates the server rejected the completion
	// manifest. Fatal.
	KindSessionComplete

	// KindObjectIntegrity indicates the finalized object's reported ETag does
	// not match the composite digest recomputed from the part ledger. Fatal but
	// post-hoc: the object remains in storage for manual inspection.
	KindObjectIntegrity

	// KindInvalidInput indicates invalid configuration or arguments, rejected
	// before any storage call is made.
	KindInvalidInput
)

// String returns a short stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindPartUpload:
		return "partUpload"
	case KindPartIntegrity:
		return "partIntegrity"
	case KindRetryExhausted:
		return "retryExhausted"
	case KindSessionStart:
		return "sessionStart"
	case KindSessionComplete:
		return "sessionComplete"
	case KindObjectIntegrity:
		return "objectIntegrity"
	case KindInvalidInput:
		return "invalidInput"
	default:
		return "unknown"
	}
}

// Error represents an upload failure with context about where it happened.
// It wraps the underlying AWS SDK or I/O error for errors.Is/As chains.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the operation that failed (e.g. "uploadPart", "complete")
	Op string

	// Bucket is the target bucket (if applicable)
	Bucket string

	// Key is the target object key (if applicable)
	Key string

	// PartNumber is the 1-based part the failure belongs to, 0 if none
	PartNumber int32

	// Attempts is how many upload attempts were made for the part, 0 if n/a
	Attempts int

	// Expected and Observed carry the two sides of a digest comparison for
	// integrity failures, empty otherwise
	Expected string
	Observed string

	// Err is the underlying error, may be nil for pure integrity mismatches
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	target := ""
	switch {
	case e.Bucket != "" && e.Key != "":
		target = " " + e.Bucket + "/" + e.Key
	case e.Bucket != "":
		target = " bucket " + e.Bucket
	case e.Key != "":
		target = " object " + e.Key
	}

	msg := fmt.Sprintf("streamtos3.%s%s", e.Op, target)
	if e.PartNumber > 0 {
		msg += fmt.Sprintf(" part %d", e.PartNumber)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Expected != "" || e.Observed != "" {
		msg += fmt.Sprintf(": digest mismatch (expected %s, observed %s)", e.Expected, e.Observed)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind, so callers can
// match with errors.Is(err, &Error{Kind: KindRetryExhausted}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithPart adds part context to an existing error.
func (e *Error) WithPart(partNumber int32, attempts int) *Error {
	e.PartNumber = partNumber
	e.Attempts = attempts
	return e
}

// WithDigests records the expected and observed digests of a failed comparison.
func (e *Error) WithDigests(expected, observed string) *Error {
	e.Expected = expected
	e.Observed = observed
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	if e.Err == nil {
		e.Err = errors.New(message)
		return e
	}
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// New creates a new Error with the given kind, operation and underlying error.
func New(kind Kind, op string, err error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// KindOf extracts the Kind from err, or 0 if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRetryable reports whether err is a part-level failure the upload state
// machine may retry: a transient upload error or a per-part integrity mismatch.
// All other kinds are fatal for the whole operation.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindPartUpload, KindPartIntegrity:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err terminates the whole upload.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k != 0 && !IsRetryable(err)
}
