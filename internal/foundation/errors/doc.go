// Package errors provides the classified error primitives used across moklog.
//
// A build distinguishes three failure scopes: whole-build failures that abort a
// session before anything is committed, per-document failures that skip one page,
// and per-asset failures that skip one static file. ClassifiedError carries that
// distinction as a severity next to a broad category, so callers can decide
// locally whether to recover.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryContent, "language tag used as folder name").
//		Fatal().
//		WithContext("path", dir).
//		Build()
package errors
