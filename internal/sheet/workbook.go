package sheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "Sheet1"

// Workbook stores the four dispatch tables as worksheets of one xlsx file.
// Every mutation is saved to disk before it returns.
type Workbook struct {
	mu   sync.Mutex
	path string
	file *excelize.File
}

var _ Backend = (*Workbook)(nil)

// OpenWorkbook opens path, creating the file and any missing worksheet with
// its default header row.
func OpenWorkbook(path string) (*Workbook, error) {
	var (
		file    *excelize.File
		err     error
		created bool
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		file = excelize.NewFile()
		created = true
	} else {
		file, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open workbook %s: %v", ErrConnectivity, path, err)
		}
	}

	wb := &Workbook{path: path, file: file}
	if err := wb.ensureSheets(created); err != nil {
		_ = file.Close()
		return nil, err
	}
	return wb, nil
}

func (w *Workbook) ensureSheets(created bool) error {
	changed := created
	for _, table := range Tables {
		idx, err := w.file.GetSheetIndex(string(table))
		if err != nil {
			return fmt.Errorf("lookup sheet %s: %w", table, err)
		}
		if idx >= 0 {
			continue
		}
		if _, err := w.file.NewSheet(string(table)); err != nil {
			return fmt.Errorf("create sheet %s: %w", table, err)
		}
		header := toCells(DefaultHeader(table))
		if err := w.file.SetSheetRow(string(table), "A1", &header); err != nil {
			return fmt.Errorf("write header %s: %w", table, err)
		}
		changed = true
	}

	if created {
		if idx, _ := w.file.GetSheetIndex(defaultSheetName); idx >= 0 {
			if err := w.file.DeleteSheet(defaultSheetName); err != nil {
				return fmt.Errorf("drop default sheet: %w", err)
			}
		}
		if idx, _ := w.file.GetSheetIndex(string(TableFaults)); idx >= 0 {
			w.file.SetActiveSheet(idx)
		}
	}

	if !changed {
		return nil
	}
	if created {
		if err := w.file.SaveAs(w.path); err != nil {
			return fmt.Errorf("%w: save workbook %s: %v", ErrConnectivity, w.path, err)
		}
		return nil
	}
	return w.save()
}

func (w *Workbook) Rows(ctx context.Context, table Table) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rows(table)
}

func (w *Workbook) AppendRow(ctx context.Context, table Table, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.rows(table)
	if err != nil {
		return err
	}
	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return err
	}
	cells := toCells(values)
	if err := w.file.SetSheetRow(string(table), cell, &cells); err != nil {
		return fmt.Errorf("append row %s: %w", table, err)
	}
	return w.save()
}

func (w *Workbook) UpdateCell(ctx context.Context, table Table, row, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row %d col %d", ErrInvalidRow, row, col)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.rows(table)
	if err != nil {
		return err
	}
	if row > len(rows) {
		return fmt.Errorf("%w: %s row %d", ErrRowNotFound, table, row)
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := w.file.SetCellStr(string(table), cell, value); err != nil {
		return fmt.Errorf("update %s!%s: %w", table, cell, err)
	}
	return w.save()
}

func (w *Workbook) DeleteRow(ctx context.Context, table Table, row int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if row < 2 {
		return fmt.Errorf("%w: %d", ErrInvalidRow, row)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.rows(table)
	if err != nil {
		return err
	}
	if row > len(rows) {
		return fmt.Errorf("%w: %s row %d", ErrRowNotFound, table, row)
	}
	if err := w.file.RemoveRow(string(table), row); err != nil {
		return fmt.Errorf("delete %s row %d: %w", table, row, err)
	}
	return w.save()
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) rows(table Table) ([][]string, error) {
	idx, err := w.file.GetSheetIndex(string(table))
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	rows, err := w.file.GetRows(string(table))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return rows, nil
}

func (w *Workbook) save() error {
	if err := w.file.Save(); err != nil {
		return fmt.Errorf("%w: save workbook %s: %v", ErrConnectivity, w.path, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
