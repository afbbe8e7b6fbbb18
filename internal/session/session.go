// Package session owns the multipart upload lifecycle and the part ledger.
//
// A Manager moves one session through Open, Completing, Completed or Aborted,
// records verified parts in part-number order, and accumulates the per-part
// digests from which the composite object digest is recomputed for the final
// integrity check.
package session

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/internal/s3api"
	"github.com/jgru/stream-to-s3/streamtypes"
)

// Manager owns one multipart upload session. Record is safe for concurrent
// use so a bounded worker pool can complete parts out of order; part numbers
// are assigned at read time by the caller.
type Manager struct {
	s3Client s3api.S3API
	log      zerolog.Logger

	bucket   string
	key      string
	uploadID string

	mu    sync.Mutex
	parts []streamtypes.Part
	state streamtypes.SessionState
}

// New creates a Manager for one upload of bucket/key.
func New(s3Client s3api.S3API, bucket, key string, log zerolog.Logger) *Manager {
	return &Manager{
		s3Client: s3Client,
		log:      log,
		bucket:   bucket,
		key:      key,
		state:    streamtypes.SessionOpen,
	}
}

// UploadID returns the storage-assigned session identifier. Empty before
// Start succeeds.
func (m *Manager) UploadID() string {
	return m.uploadID
}

// State returns the session lifecycle state.
func (m *Manager) State() streamtypes.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start creates the multipart upload. A failure here is fatal and never
// retried: a malformed bucket or failed auth does not heal by waiting.
func (m *Manager) Start(ctx context.Context, contentType string) error {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	output, err := m.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return errors.New(errors.KindSessionStart, "createMultipartUpload", err).
			WithBucket(m.bucket).WithKey(m.key)
	}

	m.uploadID = aws.ToString(output.UploadId)
	m.log.Debug().Str("uploadID", m.uploadID).Msg("multipart upload created")
	return nil
}

// Record appends a verified part to the ledger.
func (m *Manager) Record(part streamtypes.Part) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parts = append(m.parts, part)
}

// Parts returns the recorded parts in ascending part-number order.
func (m *Manager) Parts() []streamtypes.Part {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

func (m *Manager) sortedLocked() []streamtypes.Part {
	parts := make([]streamtypes.Part, len(m.parts))
	copy(parts, m.parts)
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].Number < parts[j].Number
	})
	return parts
}

// Complete finalizes the session with the full ordered part manifest. The
// caller must ensure every part reached a terminal state first.
func (m *Manager) Complete(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.state = streamtypes.SessionCompleting
	parts := m.sortedLocked()
	m.mu.Unlock()

	completed := make([]awstypes.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = awstypes.CompletedPart{
			PartNumber: aws.Int32(p.Number),
			ETag:       aws.String(p.ETag),
		}
	}

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(m.bucket),
		Key:      aws.String(m.key),
		UploadId: aws.String(m.uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	}

	output, err := m.s3Client.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.New(errors.KindSessionComplete, "completeMultipartUpload", err).
			WithBucket(m.bucket).WithKey(m.key)
	}

	m.mu.Lock()
	m.state = streamtypes.SessionCompleted
	m.mu.Unlock()

	m.log.Debug().Int("parts", len(parts)).Msg("multipart upload completed")
	return trimQuotes(aws.ToString(output.ETag)), nil
}

// Abort releases the server-side session. It is best-effort: its own failure
// is logged, never returned, so it cannot mask the error that triggered it.
func (m *Manager) Abort(ctx context.Context) {
	if m.uploadID == "" {
		return
	}

	m.mu.Lock()
	m.state = streamtypes.SessionAborted
	m.mu.Unlock()

	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(m.bucket),
		Key:      aws.String(m.key),
		UploadId: aws.String(m.uploadID),
	}
	if _, err := m.s3Client.AbortMultipartUpload(ctx, input); err != nil {
		m.log.Warn().Err(err).Str("uploadID", m.uploadID).Msg("abort multipart upload failed")
		return
	}
	m.log.Info().Str("uploadID", m.uploadID).Msg("aborted multipart upload")
}

// CompositeETag recomputes the digest S3 reports for a multipart object:
// the MD5 over the concatenated binary part digests, hex-encoded, with the
// part count appended after a dash. It is order-sensitive by construction.
func (m *Manager) CompositeETag() string {
	parts := m.Parts()

	sum := md5.New()
	for _, p := range parts {
		sum.Write(p.Digest[:])
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum.Sum(nil)), len(parts))
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
