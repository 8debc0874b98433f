package sheet

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestWorkbook(t *testing.T) *Workbook {
	t.Helper()

	wb, err := OpenWorkbook(filepath.Join(t.TempDir(), "dispatch.xlsx"))
	if err != nil {
		t.Fatalf("OpenWorkbook() error = %v", err)
	}
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func TestOpenWorkbookCreatesTablesWithHeaders(t *testing.T) {
	wb := openTestWorkbook(t)
	ctx := context.Background()

	for _, table := range Tables {
		rows, err := wb.Rows(ctx, table)
		if err != nil {
			t.Fatalf("Rows(%s) error = %v", table, err)
		}
		if len(rows) != 1 {
			t.Fatalf("Rows(%s) = %d rows, want header only", table, len(rows))
		}
		header := DefaultHeader(table)
		for i := range header {
			if rows[0][i] != header[i] {
				t.Fatalf("%s header[%d] = %q, want %q", table, i, rows[0][i], header[i])
			}
		}
	}
}

func TestWorkbookReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.xlsx")
	ctx := context.Background()

	wb, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("OpenWorkbook() error = %v", err)
	}
	if err := wb.AppendRow(ctx, TableTechnicians, []string{"Tech A"}); err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}
	_ = wb.Close()

	reopened, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("OpenWorkbook(reopen) error = %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.Rows(ctx, TableTechnicians)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "Tech A" {
		t.Fatalf("Rows() = %v", rows)
	}
}

func TestWorkbookUpdateAndDelete(t *testing.T) {
	wb := openTestWorkbook(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := wb.AppendRow(ctx, TableTechnicians, []string{name}); err != nil {
			t.Fatalf("AppendRow(%s) error = %v", name, err)
		}
	}

	if err := wb.UpdateCell(ctx, TableTechnicians, 3, 1, "B"); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}
	if err := wb.DeleteRow(ctx, TableTechnicians, 2); err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}

	rows, _ := wb.Rows(ctx, TableTechnicians)
	if len(rows) != 3 || rows[1][0] != "B" || rows[2][0] != "c" {
		t.Fatalf("Rows() = %v, want header, B, c", rows)
	}
}

func TestWorkbookRejectsHeaderAndMissingRows(t *testing.T) {
	wb := openTestWorkbook(t)
	ctx := context.Background()

	if err := wb.DeleteRow(ctx, TableStations, 1); !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("DeleteRow(header) error = %v, want ErrInvalidRow", err)
	}
	if err := wb.DeleteRow(ctx, TableStations, 5); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("DeleteRow(missing) error = %v, want ErrRowNotFound", err)
	}
	if err := wb.UpdateCell(ctx, TableStations, 9, 1, "x"); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("UpdateCell(missing) error = %v, want ErrRowNotFound", err)
	}
	if _, err := wb.Rows(ctx, Table("Nope")); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("Rows(unknown) error = %v, want ErrUnknownTable", err)
	}
}

func TestDescendingDeletionKeepsSurvivorsAligned(t *testing.T) {
	wb := openTestWorkbook(t)
	ctx := context.Background()

	names := []string{"r2", "r3", "r4", "r5", "r6", "r7"}
	for _, name := range names {
		if err := wb.AppendRow(ctx, TableTechnicians, []string{name}); err != nil {
			t.Fatalf("AppendRow() error = %v", err)
		}
	}

	for _, row := range DescendingRows([]int{3, 6, 4}) {
		if err := wb.DeleteRow(ctx, TableTechnicians, row); err != nil {
			t.Fatalf("DeleteRow(%d) error = %v", row, err)
		}
	}

	rows, _ := wb.Rows(ctx, TableTechnicians)
	got := make([]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		got = append(got, r[0])
	}
	want := []string{"r2", "r5", "r7"}
	if len(got) != len(want) {
		t.Fatalf("survivors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("survivors = %v, want %v", got, want)
		}
	}
}
