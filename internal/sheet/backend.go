package sheet

import (
	"context"
	"errors"
)

var (
	ErrConnectivity   = errors.New("spreadsheet store unreachable")
	ErrRateLimited    = errors.New("spreadsheet store rate limit exceeded")
	ErrRowNotFound    = errors.New("row not found")
	ErrSchemaMismatch = errors.New("expected column not found")
	ErrUnknownTable   = errors.New("unknown table")
	ErrInvalidRow     = errors.New("invalid row number")
)

// Backend is a row-oriented spreadsheet. Row numbers are 1-based and row 1 is
// the header, so data row k (0-based) lives at physical row k+2.
type Backend interface {
	Rows(ctx context.Context, table Table) ([][]string, error)
	AppendRow(ctx context.Context, table Table, values []string) error
	UpdateCell(ctx context.Context, table Table, row, col int, value string) error
	DeleteRow(ctx context.Context, table Table, row int) error
}
