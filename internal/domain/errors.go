package domain

import "errors"

var (
	// ErrInvalidTable is returned for unknown table identifiers or operations
	// that make no sense for a table.
	ErrInvalidTable = errors.New("invalid table")
	// ErrFormatState is returned when an operation does not fit the current
	// format of a record collection, including an interrupted conversion.
	ErrFormatState = errors.New("invalid format state")
	// ErrColumnMissing is returned when a structurally required column was removed.
	ErrColumnMissing = errors.New("column missing")
	// ErrNotInvertible is returned when a mapping is not a bijection.
	ErrNotInvertible = errors.New("mapping not invertible")
	// ErrLookupNotFound is returned when an id or name is absent from a lookup table.
	ErrLookupNotFound = errors.New("lookup not found")
	// ErrPathNotFound is returned for a missing database file or backup folder.
	ErrPathNotFound = errors.New("path not found")
	// ErrAmbiguousResult is returned when several databases match where one was expected.
	ErrAmbiguousResult = errors.New("ambiguous result")
	// ErrLossyWrite is returned when a write would silently drop pending changes.
	ErrLossyWrite = errors.New("lossy write")
)
