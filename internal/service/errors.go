package service

import (
	"errors"
	"fmt"

	"dispatch-service/internal/sheet"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrInvalidStatus    = errors.New("invalid status transition")
)

// OpError records which workflow step failed against which table and key.
// The gateway error is kept intact for errors.Is.
type OpError struct {
	Op    string
	Table sheet.Table
	Key   string
	Err   error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s on %s (%s): %v", e.Op, e.Table, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func wrapOp(op string, table sheet.Table, key string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Table: table, Key: key, Err: err}
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
