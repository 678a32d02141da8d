package services

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

// bytesReader wraps a byte slice in a bytes.Reader for use with excelize.OpenReader.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

type testSheet struct {
	name string
	rows [][]any
}

// buildWorkbook writes sheets into an in-memory xlsx. Cell values keep their
// Go type, so numbers are stored as numbers.
func buildWorkbook(t *testing.T, sheets ...testSheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("new sheet %q: %v", s.name, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				t.Fatalf("set row %d: %v", r+1, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func parseRows(t *testing.T, rows ...[]any) *ParseResult {
	t.Helper()
	result, err := ParseBOQFile(buildWorkbook(t, testSheet{name: "BOQ", rows: rows}), "boq.xlsx", Options{})
	if err != nil {
		t.Fatalf("ParseBOQFile() error = %v", err)
	}
	return result
}

func dataItems(rows []StandardBOQRow) []StandardBOQRow {
	var out []StandardBOQRow
	for _, r := range rows {
		if r.Role == RoleDataItem {
			out = append(out, r)
		}
	}
	return out
}
