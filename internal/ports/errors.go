package ports

import "errors"

// Standard persistence-level errors.
// Adapters should wrap underlying driver errors with these standard errors so
// callers can branch with errors.Is.
var (
	// Store Errors
	ErrConnection      = errors.New("cannot reach or authenticate to the document store")
	ErrNotFound        = errors.New("item not found")
	ErrMultipleResults = errors.New("multiple items are found")
	ErrDuplicateKey    = errors.New("duplicate key on unique index")
	ErrDeleteAnomaly   = errors.New("delete did not affect exactly one document")

	// Query Errors
	ErrInvalidSortKey    = errors.New("sort key is not allowed")
	ErrMissingIdentifier = errors.New("id not provided")

	// Record Errors
	ErrUnsupported      = errors.New("operation not supported for this record type")
	ErrDecode           = errors.New("stored payload cannot be decoded")
	ErrCounterExhausted = errors.New("counter reached its configured maximum")

	// General Errors
	ErrConfiguration = errors.New("invalid or missing configuration")
)
