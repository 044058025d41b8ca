// Package sheetdb is the tabular storage boundary used by the record store.
//
// A table is an ordered list of rows of text cells. Row numbers are 1-based
// and row 1 is the header, mirroring spreadsheet addressing, so callers can
// keep the row number of a record they read and update it later.
package sheetdb

import (
	"context"

	"github.com/tphakala/strainbot/internal/errors"
)

// ErrTableNotFound is returned when a table does not exist
var ErrTableNotFound = errors.NewStd("table not found")

// ErrRowOutOfRange is returned when a row number does not address a row
var ErrRowOutOfRange = errors.NewStd("row out of range")

// ErrClosed is returned by Ping after Close
var ErrClosed = errors.NewStd("backend closed")

// Backend stores named tables of text rows
type Backend interface {
	// Tables lists table names
	Tables(ctx context.Context) ([]string, error)
	// CreateTable creates a table whose first row is header
	CreateTable(ctx context.Context, name string, header []string) error
	// ReadRows returns all rows including the header. Trailing empty cells may be omitted.
	ReadRows(ctx context.Context, table string) ([][]string, error)
	// AppendRow adds row after the last row
	AppendRow(ctx context.Context, table string, row []string) error
	// UpdateCells overwrites consecutive cells of row starting at col (1-based)
	UpdateCells(ctx context.Context, table string, row, col int, values []string) error
	// DeleteRow removes row, shifting later rows up
	DeleteRow(ctx context.Context, table string, row int) error
	// ReplaceRows overwrites the contents of an existing table with rows,
	// header included
	ReplaceRows(ctx context.Context, table string, rows [][]string) error
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	// Close releases resources
	Close() error
}

func tableNotFound(table string) error {
	return errors.New(ErrTableNotFound).
		Component("sheetdb").
		Category(errors.CategoryNotFound).
		Context("table", table).
		Build()
}

func rowOutOfRange(table string, row int) error {
	return errors.New(ErrRowOutOfRange).
		Component("sheetdb").
		Category(errors.CategoryValidation).
		TableContext(table, row).
		Build()
}

// setCells writes values into cells starting at the 1-based column col,
// growing the row when needed
func setCells(cells []string, col int, values []string) []string {
	end := col - 1 + len(values)
	for len(cells) < end {
		cells = append(cells, "")
	}
	copy(cells[col-1:], values)
	return cells
}
