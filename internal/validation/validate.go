package validation

import (
	"strings"
	"unicode"

	"github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/streamtypes"
)

// ValidateBucketName validates that a bucket name is DNS-compliant according
// to AWS S3 rules.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return invalid("validateBucketName", "bucket name cannot be empty").WithBucket(bucket)
	}

	if len(bucket) < 3 || len(bucket) > 63 {
		return invalid("validateBucketName", "bucket name must be between 3 and 63 characters long").
			WithBucket(bucket)
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return invalid("validateBucketName",
				"bucket name can only contain lowercase letters, numbers, dots, and hyphens").
				WithBucket(bucket)
		}
	}

	if bucket[0] == '-' || bucket[0] == '.' || bucket[len(bucket)-1] == '-' || bucket[len(bucket)-1] == '.' {
		return invalid("validateBucketName", "bucket name cannot start or end with a hyphen or dot").
			WithBucket(bucket)
	}

	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return invalid("validateBucketName", "bucket name cannot contain two adjacent periods or hyphens").
			WithBucket(bucket)
	}

	if isIPAddress(bucket) {
		return invalid("validateBucketName", "bucket name cannot be formatted as an IP address").
			WithBucket(bucket)
	}

	return nil
}

// ValidateObjectKey validates that an object key is acceptable to S3 and free
// of path traversal.
func ValidateObjectKey(key string) error {
	if key == "" {
		return invalid("validateObjectKey", "object key cannot be empty")
	}

	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return invalid("validateObjectKey", "object key cannot contain path traversal sequences").
			WithKey(key)
	}

	if len(key) > 1024 {
		return invalid("validateObjectKey", "object key cannot exceed 1024 characters").WithKey(key)
	}

	for _, char := range key {
		if unicode.IsControl(char) {
			return invalid("validateObjectKey", "object key cannot contain control characters").
				WithKey(key)
		}
	}

	return nil
}

// ValidateStreamConfig rejects tuning values the storage service would only
// fail on mid-stream. A chunk size below the S3 part minimum surfaces here,
// before the first byte is read, rather than as a runtime completion failure.
func ValidateStreamConfig(cfg *streamtypes.StreamConfig) error {
	if cfg.ChunkSize < streamtypes.MinChunkSize {
		return invalid("validateConfig", "chunk size must be at least 5 MiB, the S3 minimum part size")
	}

	if cfg.RetryLimit < 1 {
		return invalid("validateConfig", "retry limit must be at least 1")
	}

	if cfg.RetryWait < 0 {
		return invalid("validateConfig", "retry wait cannot be negative")
	}

	if cfg.Concurrency < 1 {
		return invalid("validateConfig", "concurrency must be at least 1")
	}

	return nil
}

func invalid(op, message string) *errors.Error {
	return errors.New(errors.KindInvalidInput, op, nil).WithMessage(message)
}

// isValidBucketChar checks if a character is valid in a bucket name
func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// isIPAddress checks if a string is formatted as an IP address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if len(part) == 0 {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}

	return true
}
