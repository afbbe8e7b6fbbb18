// Package validation provides centralized input validation.
//
// Bucket names, object keys and stream tuning values are validated before the
// first storage call, so configuration mistakes fail fast instead of
// mid-stream with an unrecoverable pipe.
package validation
