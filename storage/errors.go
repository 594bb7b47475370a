package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a resource has no statements in the store.
	ErrNotFound = errors.New("resource not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrInvalidStatement is returned when a statement lacks a subject, predicate or object.
	ErrInvalidStatement = errors.New("invalid statement")
)
