// Package diag owns how warnings and errors are presented to the user.
// Errors are split into distinguished ones (expected, domain-level failures
// that render as a single line) and ordinary ones (programming defects that
// keep their full report). The Reporter arms a renderer for the current
// execution context right before an error propagates and disarms it as soon
// as it fires, so the override never leaks into unrelated failures.
// The package has no dependency on the fetcher; it only decides presentation.
package diag
