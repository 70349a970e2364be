package repository

import "fmt"

// OperationError records which repository operation failed and on which collection.
// The underlying error is one of the ports sentinel errors or a driver error wrapping one.
type OperationError struct {
	Op         string
	Collection string
	Err        error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func opError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Collection: collection, Err: err}
}
