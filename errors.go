package rods

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingIdentifier is returned when a persisted entity is saved
	// without a value in its identifier field.
	ErrMissingIdentifier = errors.New("rods: entity has no identifier value")

	// ErrNilEntity is returned when an operation receives a nil entity.
	ErrNilEntity = errors.New("rods: nil entity")

	// ErrUnknownEvent is returned when a hook is registered for an event
	// that does not exist.
	ErrUnknownEvent = errors.New("rods: unknown hook event")
)

// StorageError reports a failure of the backend while reading or writing a
// collection. The driver error is kept verbatim and reachable through
// errors.Unwrap.
//
//	var se *rods.StorageError
//	if errors.As(err, &se) {
//	    log.Printf("%s on %s failed: %v", se.Op, se.Table, se.Err)
//	}
type StorageError struct {
	Op    string // select, insert, update or aggregate
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("rods: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, table string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Table: table, Err: err}
}
