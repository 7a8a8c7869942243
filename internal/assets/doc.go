// Package assets implements the content-addressed static asset store.
//
// Every published asset is renamed to {stem}.{hash}.{ext}, where hash is the
// URL-safe base64 encoding of the little-endian xxh3 hash of the bytes that are
// actually published (after SCSS compilation and minification). Identical bytes
// always map to the same name and a one-byte change always produces a new one,
// so published assets can be cached by clients indefinitely.
//
// The store splits registration in two phases: Prepare is pure and safe to run
// on a worker pool, Add mutates the store and is called from a single goroutine
// in a deterministic order so deduplication picks a stable winner.
package assets
